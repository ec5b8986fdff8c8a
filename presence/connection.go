package presence

import (
	"context"
	"errors"
	"sync"

	"dm-service/wire"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrBackpressure = errors.New("connection outbound queue full")
	ErrRegistered   = errors.New("connection already registered")
	ErrNoUser       = errors.New("connection without user")
)

// Connection is the registry's handle for one live client connection. Pushes
// are queued on a bounded channel and drained in order by Pump.
type Connection struct {
	id  string
	out chan wire.Event

	mu     sync.Mutex
	user   uint
	closed bool
}

func NewConnection(buffer int) *Connection {
	if buffer < 1 {
		buffer = 1
	}
	return &Connection{
		id:  ulid.Make().String(),
		out: make(chan wire.Event, buffer),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// User is the identity the connection was registered under, zero before registration.
func (c *Connection) User() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Connection) Events() <-chan wire.Event {
	return c.out
}

// Push queues ev without blocking.
func (c *Connection) Push(ev wire.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.out <- ev:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close stops the connection's queue. It reports whether this call closed it.
func (c *Connection) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.out)
	return true
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Emit writes one event to the underlying transport.
type Emit func(ev wire.Event) error

// Pump drains conn into emit until the connection is closed or ctx is done.
// A transport error ends the pump and is returned so the caller can drop
// the connection.
func Pump(ctx context.Context, conn *Connection, emit Emit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				return nil
			}
			if err := emit(ev); err != nil {
				glog.Warningf("presence: emit %s to %s: %v", ev.Kind, conn.ID(), err)
				return err
			}
		}
	}
}
