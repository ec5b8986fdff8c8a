// Package client keeps a user's view of their conversations in sync with
// the messenger service: per-peer message caches with optimistic sends and
// deletes, push event merging, and the contact list.
package client

import (
	"dm-service/model"
	"dm-service/wire"
)

type EntryState int

const (
	// StatePending is an optimistic entry waiting for the server.
	StatePending EntryState = iota
	// StateConfirmed is an entry carrying a durable server id.
	StateConfirmed
)

func (s EntryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// Entry is one cached message. Pending entries are addressed by TempID,
// confirmed ones by Message.Id.
type Entry struct {
	State   EntryState
	TempID  string
	Message wire.Message
}

// Cache is the ordered message history with one peer, newest first. An
// entry moves from pending to confirmed or is removed; confirmed entries are
// never removed, only updated in place.
type Cache struct {
	entries []Entry
	loaded  bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Load replaces the confirmed history with messages, given oldest first as
// the server returns them. Pending entries stay at the head.
func (c *Cache) Load(messages []wire.Message) {
	entries := []Entry{}
	for _, entry := range c.entries {
		if entry.State == StatePending {
			entries = append(entries, entry)
		}
	}
	for i := len(messages) - 1; i >= 0; i -= 1 {
		entries = append(entries, Entry{State: StateConfirmed, Message: messages[i]})
	}
	c.entries = entries
	c.loaded = true
}

// Loaded reports whether the server history has been loaded.
func (c *Cache) Loaded() bool {
	return c.loaded
}

// InsertPending adds an optimistic entry at the head.
func (c *Cache) InsertPending(tempID string, m wire.Message) {
	c.entries = append([]Entry{{State: StatePending, TempID: tempID, Message: m}}, c.entries...)
}

func (c *Cache) pendingIndex(tempID string) int {
	for i, entry := range c.entries {
		if entry.State == StatePending && entry.TempID == tempID {
			return i
		}
	}
	return -1
}

func (c *Cache) confirmedIndex(id uint) int {
	for i, entry := range c.entries {
		if entry.State == StateConfirmed && entry.Message.Id == id {
			return i
		}
	}
	return -1
}

// Confirm turns the pending entry tempID into the server's message in place.
// If m already arrived by push, the pending entry is dropped and the
// existing one updated instead. It reports whether tempID was pending.
func (c *Cache) Confirm(tempID string, m wire.Message) bool {
	i := c.pendingIndex(tempID)
	if i < 0 {
		return false
	}
	if j := c.confirmedIndex(m.Id); j >= 0 {
		c.entries[j].Message = m
		c.remove(i)
		return true
	}
	c.entries[i] = Entry{State: StateConfirmed, Message: m}
	return true
}

// Reject removes the pending entry tempID.
func (c *Cache) Reject(tempID string) bool {
	i := c.pendingIndex(tempID)
	if i < 0 {
		return false
	}
	c.remove(i)
	return true
}

func (c *Cache) remove(i int) {
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

// Merge applies a pushed message: an entry with the same durable id is
// updated in place, otherwise the message becomes the new head. It reports
// whether a new entry was added.
func (c *Cache) Merge(m wire.Message) bool {
	if c.Update(m) {
		return false
	}
	c.entries = append([]Entry{{State: StateConfirmed, Message: m}}, c.entries...)
	return true
}

// Update replaces the content of the confirmed entry with m's id.
func (c *Cache) Update(m wire.Message) bool {
	i := c.confirmedIndex(m.Id)
	if i < 0 {
		return false
	}
	c.entries[i].Message = m
	return true
}

// Redact replaces the content of message id with the deleted placeholder,
// keeping its slot. It returns the content before redaction.
func (c *Cache) Redact(id uint) (wire.Message, bool) {
	i := c.confirmedIndex(id)
	if i < 0 {
		return wire.Message{}, false
	}
	before := c.entries[i].Message
	redacted := before
	redacted.Text = model.DeletedPlaceholder
	redacted.Image = ""
	redacted.Deleted = true
	c.entries[i].Message = redacted
	return before, true
}

// Get returns the confirmed message id.
func (c *Cache) Get(id uint) (wire.Message, bool) {
	i := c.confirmedIndex(id)
	if i < 0 {
		return wire.Message{}, false
	}
	return c.entries[i].Message, true
}

// Entries returns a copy of the cache, newest first.
func (c *Cache) Entries() []Entry {
	return append([]Entry{}, c.entries...)
}

// Messages returns the cached messages oldest first, for display.
func (c *Cache) Messages() []wire.Message {
	messages := make([]wire.Message, 0, len(c.entries))
	for i := len(c.entries) - 1; i >= 0; i -= 1 {
		messages = append(messages, c.entries[i].Message)
	}
	return messages
}

func (c *Cache) Len() int {
	return len(c.entries)
}
