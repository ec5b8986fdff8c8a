package client

import (
	"testing"
	"time"

	"dm-service/model"
	"dm-service/wire"

	"github.com/go-playground/assert/v2"
)

func message(id uint, text string) wire.Message {
	return wire.Message{Id: id, Sender: 1, Receiver: 2, Text: text, CreatedAt: time.Unix(int64(id), 0)}
}

func states(c *Cache) []EntryState {
	out := []EntryState{}
	for _, entry := range c.Entries() {
		out = append(out, entry.State)
	}
	return out
}

func texts(c *Cache) []string {
	out := []string{}
	for _, entry := range c.Entries() {
		out = append(out, entry.Message.Text)
	}
	return out
}

func TestCacheLoadNewestFirst(t *testing.T) {
	c := NewCache()
	assert.Equal(t, c.Loaded(), false)

	c.Load([]wire.Message{message(1, "a"), message(2, "b"), message(3, "c")})
	assert.Equal(t, c.Loaded(), true)
	assert.Equal(t, texts(c), []string{"c", "b", "a"})
	assert.Equal(t, len(c.Messages()), 3)
	assert.Equal(t, c.Messages()[0].Text, "a")
}

func TestCacheConfirmInPlace(t *testing.T) {
	c := NewCache()
	c.Load([]wire.Message{message(1, "old")})

	c.InsertPending("t1", wire.Message{Text: "first"})
	c.InsertPending("t2", wire.Message{Text: "second"})
	assert.Equal(t, texts(c), []string{"second", "first", "old"})

	// the earlier send confirms after the later one was inserted
	assert.Equal(t, c.Confirm("t1", message(10, "first")), true)
	assert.Equal(t, texts(c), []string{"second", "first", "old"})
	assert.Equal(t, states(c), []EntryState{StatePending, StateConfirmed, StateConfirmed})

	m, ok := c.Get(10)
	assert.Equal(t, ok, true)
	assert.Equal(t, m.Text, "first")

	// confirming twice is a no-op
	assert.Equal(t, c.Confirm("t1", message(10, "first")), false)
	assert.Equal(t, c.Len(), 3)
}

func TestCacheConfirmAfterPush(t *testing.T) {
	c := NewCache()
	c.InsertPending("t1", wire.Message{Text: "hi"})

	// the durable message arrives by push before the reply
	assert.Equal(t, c.Merge(message(5, "hi")), true)
	assert.Equal(t, c.Len(), 2)

	assert.Equal(t, c.Confirm("t1", message(5, "hi")), true)
	assert.Equal(t, c.Len(), 1)
	assert.Equal(t, c.Entries()[0].State, StateConfirmed)
	assert.Equal(t, c.Entries()[0].Message.Id, uint(5))
}

func TestCacheRejectByTempID(t *testing.T) {
	c := NewCache()
	c.InsertPending("t1", wire.Message{Text: "first"})
	c.InsertPending("t2", wire.Message{Text: "second"})
	c.InsertPending("t3", wire.Message{Text: "third"})

	assert.Equal(t, c.Reject("t2"), true)
	assert.Equal(t, texts(c), []string{"third", "first"})
	assert.Equal(t, c.Reject("t2"), false)

	for _, entry := range c.Entries() {
		assert.NotEqual(t, entry.TempID, "t2")
	}
}

func TestCacheMergeIsIdempotent(t *testing.T) {
	c := NewCache()
	c.Load([]wire.Message{message(1, "a")})

	assert.Equal(t, c.Merge(message(2, "b")), true)
	assert.Equal(t, c.Merge(message(2, "b")), false)

	seen := message(2, "b")
	seen.Seen = true
	assert.Equal(t, c.Merge(seen), false)
	assert.Equal(t, c.Len(), 2)
	assert.Equal(t, c.Entries()[0].Message.Seen, true)
}

func TestCacheRedactKeepsSlot(t *testing.T) {
	c := NewCache()
	m := message(2, "secret")
	m.Image = "https://img/2.png"
	c.Load([]wire.Message{message(1, "a"), m, message(3, "c")})

	before, ok := c.Redact(2)
	assert.Equal(t, ok, true)
	assert.Equal(t, before.Text, "secret")
	assert.Equal(t, texts(c), []string{"c", model.DeletedPlaceholder, "a"})

	redacted, _ := c.Get(2)
	assert.Equal(t, redacted.Image, "")
	assert.Equal(t, redacted.Deleted, true)

	_, ok = c.Redact(99)
	assert.Equal(t, ok, false)
	assert.Equal(t, c.Len(), 3)
}

func TestCacheLoadKeepsPending(t *testing.T) {
	c := NewCache()
	c.InsertPending("t1", wire.Message{Text: "sending"})
	c.Load([]wire.Message{message(1, "a")})

	assert.Equal(t, states(c), []EntryState{StatePending, StateConfirmed})
	assert.Equal(t, c.Confirm("t1", message(2, "sending")), true)
	assert.Equal(t, texts(c), []string{"sending", "a"})
}
