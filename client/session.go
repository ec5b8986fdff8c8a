package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dm-service/apperror"
	"dm-service/wire"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// API is the request/response surface of the messenger service.
type API interface {
	Contacts(ctx context.Context) (*wire.Contacts, error)
	Conversation(ctx context.Context, peer uint) ([]wire.Message, error)
	Send(ctx context.Context, peer uint, in wire.SendInput) (wire.Message, error)
	Delete(ctx context.Context, id uint) (wire.Message, error)
	MarkSeen(ctx context.Context, id uint) error
	Incoming(ctx context.Context) ([]wire.FollowRequest, error)
}

// NewTempID returns a fresh identifier for an optimistic entry.
func NewTempID() string {
	return "tmp-" + ulid.Make().String()
}

// Session is one signed in user's synchronized state.
type Session struct {
	api API
	me  uint

	mutex    sync.Mutex
	caches   map[uint]*Cache
	sending  map[uint]*sync.Mutex
	active   uint
	contacts []wire.Contact
	unseen   map[uint]int64
	online   map[uint]bool
	requests []wire.FollowRequest
	deleted  map[uint]bool // ids the server has redacted
}

func NewSession(api API, me uint) *Session {
	return &Session{
		api:     api,
		me:      me,
		caches:  map[uint]*Cache{},
		sending: map[uint]*sync.Mutex{},
		unseen:  map[uint]int64{},
		online:  map[uint]bool{},
		deleted: map[uint]bool{},
	}
}

func (s *Session) Me() uint {
	return s.me
}

// LoadContacts fetches the contact list and unseen counts.
func (s *Session) LoadContacts(ctx context.Context) error {
	contacts, err := s.api.Contacts(ctx)
	if err != nil {
		return err
	}
	SortContacts(contacts.Users)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.contacts = contacts.Users
	s.unseen = map[uint]int64{}
	for user, count := range contacts.UnseenMessages {
		s.unseen[user] = count
	}
	if s.active != 0 {
		delete(s.unseen, s.active)
	}
	for _, contact := range contacts.Users {
		if contact.Online {
			s.online[contact.Id] = true
		}
	}
	return nil
}

// LoadRequests fetches the pending follow requests addressed to me.
func (s *Session) LoadRequests(ctx context.Context) error {
	requests, err := s.api.Incoming(ctx)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests = requests
	return nil
}

// Select makes peer the active conversation and returns its messages,
// oldest first. A loaded history is returned as is; the server is asked
// only when peer's history was never loaded.
func (s *Session) Select(ctx context.Context, peer uint) ([]wire.Message, error) {
	s.mutex.Lock()
	s.active = peer
	delete(s.unseen, peer)
	cache, ok := s.caches[peer]
	if ok && cache.Loaded() {
		messages := cache.Messages()
		s.mutex.Unlock()
		return messages, nil
	}
	s.mutex.Unlock()

	return s.Refresh(ctx, peer)
}

// Refresh re-reads the conversation with peer from the server.
func (s *Session) Refresh(ctx context.Context, peer uint) ([]wire.Message, error) {
	messages, err := s.api.Conversation(ctx, peer)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	cache := s.cache(peer)
	cache.Load(messages)
	for _, m := range messages {
		if m.Deleted {
			s.deleted[m.Id] = true
		}
	}
	return cache.Messages(), nil
}

// Deselect clears the active conversation. Cached histories are kept.
func (s *Session) Deselect() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.active = 0
}

func (s *Session) Active() uint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// Visible returns the active conversation, oldest first.
func (s *Session) Visible() []wire.Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.active == 0 {
		return []wire.Message{}
	}
	cache, ok := s.caches[s.active]
	if !ok {
		return []wire.Message{}
	}
	return cache.Messages()
}

// Entries returns the cache entries for peer, newest first.
func (s *Session) Entries(peer uint) []Entry {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cache, ok := s.caches[peer]
	if !ok {
		return []Entry{}
	}
	return cache.Entries()
}

func (s *Session) Contacts() []wire.Contact {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]wire.Contact{}, s.contacts...)
}

func (s *Session) Unseen(peer uint) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.unseen[peer]
}

func (s *Session) Online(user uint) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.online[user]
}

func (s *Session) Requests() []wire.FollowRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]wire.FollowRequest{}, s.requests...)
}

// cache returns the cache for peer, creating it. Callers hold s.mutex.
func (s *Session) cache(peer uint) *Cache {
	cache, ok := s.caches[peer]
	if !ok {
		cache = NewCache()
		s.caches[peer] = cache
	}
	return cache
}

func (s *Session) peerLock(peer uint) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	lock, ok := s.sending[peer]
	if !ok {
		lock = &sync.Mutex{}
		s.sending[peer] = lock
	}
	return lock
}

// touch moves peer's last activity to at and re-sorts the contacts. Callers
// hold s.mutex.
func (s *Session) touch(peer uint, at time.Time) {
	for i := range s.contacts {
		if s.contacts[i].Id == peer {
			if s.contacts[i].LastMessageAt == nil || s.contacts[i].LastMessageAt.Before(at) {
				last := at
				s.contacts[i].LastMessageAt = &last
			}
			break
		}
	}
	SortContacts(s.contacts)
}

// Send shows the message in peer's cache at once and then asks the server
// to deliver it. On success the optimistic entry becomes the stored
// message; on failure it is removed and the error returned. Sends to the
// same peer are applied one at a time.
func (s *Session) Send(ctx context.Context, peer uint, in wire.SendInput) (wire.Message, error) {
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return wire.Message{}, apperror.Validation("Message cannot be empty.")
	}

	lock := s.peerLock(peer)
	lock.Lock()
	defer lock.Unlock()

	tempID := NewTempID()
	s.mutex.Lock()
	s.cache(peer).InsertPending(tempID, wire.Message{
		Sender:    s.me,
		Receiver:  peer,
		Text:      in.Text,
		Image:     in.Image,
		CreatedAt: time.Now(),
	})
	s.mutex.Unlock()

	m, err := s.api.Send(ctx, peer, in)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err != nil {
		s.cache(peer).Reject(tempID)
		return wire.Message{}, err
	}
	s.cache(peer).Confirm(tempID, m)
	s.touch(peer, m.CreatedAt)
	return m, nil
}

// Delete redacts message id in peer's cache at once and then asks the
// server to delete it. On failure the original content is restored, unless
// the server reports or has pushed that the message is already deleted.
func (s *Session) Delete(ctx context.Context, peer, id uint) (wire.Message, error) {
	s.mutex.Lock()
	cache := s.cache(peer)
	before, ok := cache.Get(id)
	if ok && before.Sender != s.me {
		s.mutex.Unlock()
		return wire.Message{}, apperror.Authorization("Not authorized to delete this message")
	}
	if ok {
		cache.Redact(id)
	}
	s.mutex.Unlock()

	m, err := s.api.Delete(ctx, id)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			s.deleted[id] = true
		}
		if ok && !s.deleted[id] {
			cache.Update(before)
		}
		return wire.Message{}, err
	}
	s.deleted[id] = true
	cache.Update(m)
	return m, nil
}

// HandleEvent merges one server push into the session.
func (s *Session) HandleEvent(ctx context.Context, ev wire.Event) error {
	switch payload := ev.Payload.(type) {
	case wire.Message:
		switch ev.Kind {
		case wire.EventNewMessage:
			return s.receive(ctx, payload)
		case wire.EventMessageDeleted:
			s.redacted(payload)
			return nil
		}
	case []uint:
		if ev.Kind == wire.EventOnlineUsers {
			s.mutex.Lock()
			s.online = map[uint]bool{}
			for _, user := range payload {
				s.online[user] = true
			}
			s.mutex.Unlock()
			return nil
		}
	case wire.FollowRequestPayload:
		return s.LoadRequests(ctx)
	case wire.FollowAcceptedPayload:
		return errors.Join(s.LoadContacts(ctx), s.LoadRequests(ctx))
	}
	return fmt.Errorf("unexpected %s payload %T", ev.Kind, ev.Payload)
}

// HandleRaw decodes a push as read off the transport and merges it.
func (s *Session) HandleRaw(ctx context.Context, kind string, raw []byte) error {
	ev, err := wire.DecodeEvent(wire.EventKind(kind), raw)
	if err != nil {
		return err
	}
	return s.HandleEvent(ctx, ev)
}

func (s *Session) peerOf(m wire.Message) uint {
	if m.Sender == s.me {
		return m.Receiver
	}
	return m.Sender
}

func (s *Session) receive(ctx context.Context, m wire.Message) error {
	peer := s.peerOf(m)

	s.mutex.Lock()
	// a peer never opened is fetched whole on select
	if cache, ok := s.caches[peer]; ok {
		cache.Merge(m)
	}
	s.touch(peer, m.CreatedAt)
	incoming := m.Sender == peer && !m.Seen
	active := s.active == peer
	if incoming && !active {
		s.unseen[peer] += 1
	}
	s.mutex.Unlock()

	if !incoming || !active {
		return nil
	}
	if err := s.api.MarkSeen(ctx, m.Id); err != nil {
		glog.Warningf("client: mark message %d seen: %v", m.Id, err)
		return err
	}
	m.Seen = true
	s.mutex.Lock()
	if cache, ok := s.caches[peer]; ok {
		cache.Update(m)
	}
	s.mutex.Unlock()
	return nil
}

func (s *Session) redacted(m wire.Message) {
	peer := s.peerOf(m)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.deleted[m.Id] = true
	if cache, ok := s.caches[peer]; ok {
		cache.Update(m)
	}
}
