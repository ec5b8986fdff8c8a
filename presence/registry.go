// Package presence tracks which users are reachable right now and on which
// live connections. It holds no durable state.
package presence

import (
	"slices"
	"sync"

	"dm-service/wire"

	"github.com/golang/glog"
)

// Observer is told the online set after presence changes. It runs on its
// own goroutine and may miss intermediate sets, never the latest one.
type Observer func(online []uint)

// Remote forwards an event to connections of user held by other nodes.
type Remote func(user uint, ev wire.Event)

type observation struct {
	observe Observer
	pending chan []uint
}

func (o *observation) run() {
	for online := range o.pending {
		o.observe(online)
	}
}

// offer replaces any snapshot not yet observed. Callers hold r.changes, so
// the send after draining never blocks.
func (o *observation) offer(online []uint) {
	select {
	case <-o.pending:
	default:
	}
	o.pending <- online
}

type Registry struct {
	// changes serializes mutation and the broadcast that follows it, so
	// connections see onlineUsers snapshots in change order.
	changes sync.Mutex

	mu          sync.RWMutex
	users       map[uint]map[string]*Connection
	connections int

	observers []*observation
	remote    Remote
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[uint]map[string]*Connection),
	}
}

// Observe adds an observer. Not safe to call concurrently with changes.
func (r *Registry) Observe(observer Observer) {
	o := &observation{
		observe: observer,
		pending: make(chan []uint, 1),
	}
	r.observers = append(r.observers, o)
	go o.run()
}

// Forward sets where Send goes for users without a connection on this
// node. Not safe to call concurrently with Send.
func (r *Registry) Forward(remote Remote) {
	r.remote = remote
}

// Close stops the observers. Later changes are not observed.
func (r *Registry) Close() {
	r.changes.Lock()
	defer r.changes.Unlock()

	for _, o := range r.observers {
		close(o.pending)
	}
	r.observers = nil
}

// Register adds conn under user. Connections of the same user are
// independent entries.
func (r *Registry) Register(user uint, conn *Connection) error {
	if user == 0 {
		return ErrNoUser
	}

	r.changes.Lock()
	defer r.changes.Unlock()

	if conn.Closed() {
		return ErrClosed
	}

	conn.mu.Lock()
	if conn.user != 0 {
		conn.mu.Unlock()
		return ErrRegistered
	}
	conn.user = user
	conn.mu.Unlock()

	r.mu.Lock()
	handles, ok := r.users[user]
	if !ok {
		handles = make(map[string]*Connection)
		r.users[user] = handles
	}
	handles[conn.ID()] = conn
	r.connections += 1
	r.mu.Unlock()

	glog.V(1).Infof("presence: registered %s for user %d", conn.ID(), user)
	r.broadcast()
	return nil
}

// Unregister removes exactly conn and closes it. It reports whether conn
// was registered. Removing a user's last connection takes the user offline.
func (r *Registry) Unregister(conn *Connection) bool {
	r.changes.Lock()
	defer r.changes.Unlock()

	user := conn.User()

	r.mu.Lock()
	handles, ok := r.users[user]
	if ok {
		_, ok = handles[conn.ID()]
	}
	if ok {
		delete(handles, conn.ID())
		if len(handles) == 0 {
			delete(r.users, user)
		}
		r.connections -= 1
	}
	r.mu.Unlock()

	conn.Close()
	if !ok {
		return false
	}

	glog.V(1).Infof("presence: unregistered %s for user %d", conn.ID(), user)
	r.broadcast()
	return true
}

// ConnectionsFor returns the live connections of user.
func (r *Registry) ConnectionsFor(user uint) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.users[user]
	conns := make([]*Connection, 0, len(handles))
	for _, conn := range handles {
		conns = append(conns, conn)
	}
	return conns
}

func (r *Registry) IsOnline(user uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[user]) > 0
}

// OnlineUsers returns the users with at least one connection, ascending.
func (r *Registry) OnlineUsers() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online()
}

func (r *Registry) online() []uint {
	users := make([]uint, 0, len(r.users))
	for user := range r.users {
		users = append(users, user)
	}
	slices.Sort(users)
	return users
}

// Connections returns the number of live connections.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connections
}

// Send pushes ev to every connection of user and returns how many accepted
// it. A user with no connection here is handed to the remote forwarder.
func (r *Registry) Send(user uint, ev wire.Event) int {
	conns := r.ConnectionsFor(user)
	if len(conns) == 0 && r.remote != nil {
		r.remote(user, ev)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Push(ev); err != nil {
			glog.Warningf("presence: push %s to user %d on %s: %v", ev.Kind, user, conn.ID(), err)
			continue
		}
		delivered += 1
	}
	return delivered
}

// Broadcast pushes ev to every live connection.
func (r *Registry) Broadcast(ev wire.Event) int {
	r.mu.RLock()
	conns := make([]*Connection, 0, r.connections)
	for _, handles := range r.users {
		for _, conn := range handles {
			conns = append(conns, conn)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.Push(ev); err == nil {
			delivered += 1
		}
	}
	return delivered
}

func (r *Registry) broadcast() {
	online := r.OnlineUsers()
	r.Broadcast(wire.OnlineUsersEvent(online))
	for _, o := range r.observers {
		o.offer(slices.Clone(online))
	}
}
