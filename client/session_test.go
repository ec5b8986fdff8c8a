package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"dm-service/apperror"
	"dm-service/model"
	"dm-service/wire"

	"github.com/go-playground/assert/v2"
)

type fakeAPI struct {
	mutex sync.Mutex

	me            uint
	nextID        uint
	conversations map[uint][]wire.Message
	contacts      *wire.Contacts
	requests      []wire.FollowRequest
	sendErr       error
	deleteErr     error
	inflight      int
	maxInflight   int
	sendDelay     time.Duration

	// beforeDelete runs at the start of Delete, outside the lock.
	beforeDelete func()

	conversationCalls int
	contactCalls      int
	incomingCalls     int
	seen              []uint
}

func newFakeAPI(me uint) *fakeAPI {
	return &fakeAPI{
		me:            me,
		nextID:        100,
		conversations: map[uint][]wire.Message{},
		contacts:      &wire.Contacts{Users: []wire.Contact{}, UnseenMessages: map[uint]int64{}},
	}
}

func (f *fakeAPI) Contacts(ctx context.Context) (*wire.Contacts, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.contactCalls += 1
	copied := *f.contacts
	copied.Users = append([]wire.Contact{}, f.contacts.Users...)
	return &copied, nil
}

func (f *fakeAPI) Conversation(ctx context.Context, peer uint) ([]wire.Message, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.conversationCalls += 1
	return append([]wire.Message{}, f.conversations[peer]...), nil
}

func (f *fakeAPI) Send(ctx context.Context, peer uint, in wire.SendInput) (wire.Message, error) {
	f.mutex.Lock()
	f.inflight += 1
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	delay := f.sendDelay
	f.mutex.Unlock()

	time.Sleep(delay)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.inflight -= 1
	if f.sendErr != nil {
		return wire.Message{}, f.sendErr
	}
	f.nextID += 1
	m := wire.Message{
		Id:        f.nextID,
		Sender:    f.me,
		Receiver:  peer,
		Text:      in.Text,
		Image:     in.Image,
		CreatedAt: time.Unix(int64(f.nextID), 0),
	}
	f.conversations[peer] = append(f.conversations[peer], m)
	return m, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id uint) (wire.Message, error) {
	if f.beforeDelete != nil {
		f.beforeDelete()
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.deleteErr != nil {
		return wire.Message{}, f.deleteErr
	}
	for peer, messages := range f.conversations {
		for i := range messages {
			if messages[i].Id == id {
				messages[i].Text = model.DeletedPlaceholder
				messages[i].Image = ""
				messages[i].Deleted = true
				f.conversations[peer] = messages
				return messages[i], nil
			}
		}
	}
	return wire.Message{}, apperror.NotFound("Message not found")
}

func (f *fakeAPI) MarkSeen(ctx context.Context, id uint) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.seen = append(f.seen, id)
	return nil
}

func (f *fakeAPI) Incoming(ctx context.Context) ([]wire.FollowRequest, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.incomingCalls += 1
	return append([]wire.FollowRequest{}, f.requests...), nil
}

const (
	me   uint = 1
	peer uint = 2
)

func TestSendConfirmsOptimisticEntry(t *testing.T) {
	api := newFakeAPI(me)
	s := NewSession(api, me)
	ctx := context.Background()

	_, err := s.Select(ctx, peer)
	assert.Equal(t, err, nil)

	m, err := s.Send(ctx, peer, wire.SendInput{Text: "hi"})
	assert.Equal(t, err, nil)

	entries := s.Entries(peer)
	assert.Equal(t, len(entries), 1)
	assert.Equal(t, entries[0].State, StateConfirmed)
	assert.Equal(t, entries[0].Message.Id, m.Id)

	// a later push of the same message does not duplicate it
	assert.Equal(t, s.HandleEvent(ctx, wire.NewMessageEvent(m)), nil)
	assert.Equal(t, len(s.Entries(peer)), 1)
}

func TestSendRollsBackOnFailure(t *testing.T) {
	api := newFakeAPI(me)
	api.sendErr = apperror.Authorization("Chat locked until both users follow each other")
	s := NewSession(api, me)
	ctx := context.Background()

	_, err := s.Select(ctx, peer)
	assert.Equal(t, err, nil)

	_, err = s.Send(ctx, peer, wire.SendInput{Text: "hi"})
	assert.Equal(t, apperror.Is(err, apperror.KindAuthorization), true)
	assert.Equal(t, len(s.Entries(peer)), 0)
}

func TestSendShowsPendingImmediately(t *testing.T) {
	api := newFakeAPI(me)
	api.sendDelay = 50 * time.Millisecond
	s := NewSession(api, me)
	ctx := context.Background()
	s.Select(ctx, peer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Send(ctx, peer, wire.SendInput{Text: "hi"})
	}()

	deadline := time.Now().Add(time.Second)
	for len(s.Entries(peer)) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	entries := s.Entries(peer)
	assert.Equal(t, len(entries), 1)
	assert.Equal(t, entries[0].State, StatePending)
	assert.Equal(t, entries[0].Message.Text, "hi")

	<-done
	assert.Equal(t, s.Entries(peer)[0].State, StateConfirmed)
}

func TestSendsToOnePeerAreSerialized(t *testing.T) {
	api := newFakeAPI(me)
	api.sendDelay = 10 * time.Millisecond
	s := NewSession(api, me)
	ctx := context.Background()
	s.Select(ctx, peer)

	var wg sync.WaitGroup
	for i := 0; i < 5; i += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(ctx, peer, wire.SendInput{Text: "burst"})
		}()
	}
	wg.Wait()

	assert.Equal(t, api.maxInflight, 1)
	entries := s.Entries(peer)
	assert.Equal(t, len(entries), 5)
	ids := map[uint]bool{}
	for _, entry := range entries {
		assert.Equal(t, entry.State, StateConfirmed)
		ids[entry.Message.Id] = true
	}
	assert.Equal(t, len(ids), 5)
}

func TestSendEmptyIsRejectedLocally(t *testing.T) {
	s := NewSession(newFakeAPI(me), me)

	_, err := s.Send(context.Background(), peer, wire.SendInput{Text: "  "})
	assert.Equal(t, apperror.Is(err, apperror.KindValidation), true)
	assert.Equal(t, len(s.Entries(peer)), 0)
}

func TestSelectIsCacheFirst(t *testing.T) {
	api := newFakeAPI(me)
	api.conversations[peer] = []wire.Message{
		{Id: 1, Sender: peer, Receiver: me, Text: "one"},
		{Id: 2, Sender: me, Receiver: peer, Text: "two"},
	}
	s := NewSession(api, me)
	ctx := context.Background()

	messages, err := s.Select(ctx, peer)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(messages), 2)
	assert.Equal(t, messages[0].Text, "one")
	assert.Equal(t, api.conversationCalls, 1)

	_, err = s.Select(ctx, 3)
	assert.Equal(t, err, nil)
	assert.Equal(t, s.Active(), uint(3))
	assert.Equal(t, api.conversationCalls, 2)

	// returning shows the cached history without a fetch
	messages, err = s.Select(ctx, peer)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(messages), 2)
	assert.Equal(t, api.conversationCalls, 2)

	s.Deselect()
	assert.Equal(t, s.Active(), uint(0))
	assert.Equal(t, len(s.Visible()), 0)
}

func TestSendBeforeSelectStillLoadsHistory(t *testing.T) {
	api := newFakeAPI(me)
	api.conversations[peer] = []wire.Message{{Id: 1, Sender: peer, Receiver: me, Text: "earlier"}}
	s := NewSession(api, me)
	ctx := context.Background()

	_, err := s.Send(ctx, peer, wire.SendInput{Text: "hi"})
	assert.Equal(t, err, nil)

	messages, err := s.Select(ctx, peer)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(messages), 2)
	assert.Equal(t, messages[0].Text, "earlier")
	assert.Equal(t, messages[1].Text, "hi")
}

func TestIncomingPushes(t *testing.T) {
	api := newFakeAPI(me)
	api.contacts.Users = []wire.Contact{{Id: 3}, {Id: peer}}
	s := NewSession(api, me)
	ctx := context.Background()
	assert.Equal(t, s.LoadContacts(ctx), nil)
	s.Select(ctx, 3)

	// not active: counted as unseen
	pushed := wire.Message{Id: 7, Sender: peer, Receiver: me, Text: "yo", CreatedAt: time.Unix(70, 0)}
	assert.Equal(t, s.HandleEvent(ctx, wire.NewMessageEvent(pushed)), nil)
	assert.Equal(t, s.Unseen(peer), int64(1))
	assert.Equal(t, s.Contacts()[0].Id, peer)
	assert.Equal(t, len(api.seen), 0)

	// selecting clears the count and fetches
	api.conversations[peer] = []wire.Message{pushed}
	s.Select(ctx, peer)
	assert.Equal(t, s.Unseen(peer), int64(0))

	// active: merged and marked seen
	next := wire.Message{Id: 8, Sender: peer, Receiver: me, Text: "again", CreatedAt: time.Unix(80, 0)}
	assert.Equal(t, s.HandleEvent(ctx, wire.NewMessageEvent(next)), nil)
	assert.Equal(t, api.seen, []uint{8})
	visible := s.Visible()
	assert.Equal(t, len(visible), 2)
	assert.Equal(t, visible[1].Seen, true)
}

func TestDeletePushRedactsInPlace(t *testing.T) {
	api := newFakeAPI(me)
	api.conversations[peer] = []wire.Message{
		{Id: 1, Sender: peer, Receiver: me, Text: "a"},
		{Id: 2, Sender: peer, Receiver: me, Text: "b", Image: "https://img/b.png"},
		{Id: 3, Sender: me, Receiver: peer, Text: "c"},
	}
	s := NewSession(api, me)
	ctx := context.Background()
	s.Select(ctx, peer)

	redacted := wire.Message{Id: 2, Sender: peer, Receiver: me, Text: model.DeletedPlaceholder, Deleted: true}
	assert.Equal(t, s.HandleEvent(ctx, wire.MessageDeletedEvent(redacted)), nil)

	visible := s.Visible()
	assert.Equal(t, len(visible), 3)
	assert.Equal(t, visible[1].Text, model.DeletedPlaceholder)
	assert.Equal(t, visible[1].Image, "")
	assert.Equal(t, visible[2].Text, "c")
}

func TestOptimisticDelete(t *testing.T) {
	api := newFakeAPI(me)
	api.conversations[peer] = []wire.Message{
		{Id: 1, Sender: peer, Receiver: me, Text: "theirs"},
		{Id: 2, Sender: me, Receiver: peer, Text: "mine"},
	}
	s := NewSession(api, me)
	ctx := context.Background()
	s.Select(ctx, peer)

	_, err := s.Delete(ctx, peer, 1)
	assert.Equal(t, apperror.Is(err, apperror.KindAuthorization), true)
	assert.Equal(t, s.Visible()[0].Text, "theirs")

	api.deleteErr = apperror.Transient("Message store unavailable", nil)
	_, err = s.Delete(ctx, peer, 2)
	assert.Equal(t, apperror.Is(err, apperror.KindTransient), true)
	assert.Equal(t, s.Visible()[1].Text, "mine")
	assert.Equal(t, s.Visible()[1].Deleted, false)

	api.deleteErr = nil
	m, err := s.Delete(ctx, peer, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, m.Deleted, true)
	assert.Equal(t, s.Visible()[1].Text, model.DeletedPlaceholder)
	assert.Equal(t, len(s.Visible()), 2)
}

func TestFailedDeleteKeepsServerRedaction(t *testing.T) {
	for _, deleteErr := range []error{
		apperror.NotFound("Message already deleted"),
		apperror.Transient("Messenger unreachable", nil),
	} {
		api := newFakeAPI(me)
		api.conversations[peer] = []wire.Message{
			{Id: 2, Sender: me, Receiver: peer, Text: "mine"},
		}
		s := NewSession(api, me)
		ctx := context.Background()
		s.Select(ctx, peer)

		// another tab deleted it and the push lands while this call is in flight
		redacted := wire.Message{Id: 2, Sender: me, Receiver: peer, Text: model.DeletedPlaceholder, Deleted: true}
		api.beforeDelete = func() {
			assert.Equal(t, s.HandleEvent(ctx, wire.MessageDeletedEvent(redacted)), nil)
		}
		api.deleteErr = deleteErr

		_, err := s.Delete(ctx, peer, 2)
		assert.Equal(t, apperror.KindOf(err), apperror.KindOf(deleteErr))
		assert.Equal(t, s.Visible()[0].Text, model.DeletedPlaceholder)
		assert.Equal(t, s.Visible()[0].Deleted, true)
	}
}

func TestDeleteNotFoundKeepsRedaction(t *testing.T) {
	api := newFakeAPI(me)
	api.conversations[peer] = []wire.Message{
		{Id: 2, Sender: me, Receiver: peer, Text: "mine"},
	}
	s := NewSession(api, me)
	ctx := context.Background()
	s.Select(ctx, peer)

	api.deleteErr = apperror.NotFound("Message already deleted")
	_, err := s.Delete(ctx, peer, 2)
	assert.Equal(t, apperror.Is(err, apperror.KindNotFound), true)
	assert.Equal(t, s.Visible()[0].Text, model.DeletedPlaceholder)
	assert.Equal(t, s.Visible()[0].Deleted, true)
}

func TestFollowPushesRefetch(t *testing.T) {
	api := newFakeAPI(me)
	api.requests = []wire.FollowRequest{{Id: 4, From: 9, To: me, Status: "pending"}}
	s := NewSession(api, me)
	ctx := context.Background()

	ev := wire.Event{Kind: wire.EventFollowRequest, Payload: wire.FollowRequestPayload{Id: 4, From: 9}}
	assert.Equal(t, s.HandleEvent(ctx, ev), nil)
	assert.Equal(t, api.incomingCalls, 1)
	assert.Equal(t, len(s.Requests()), 1)

	api.requests = nil
	api.contacts.Users = []wire.Contact{{Id: 9, MutualFollow: true}}
	ev = wire.Event{Kind: wire.EventFollowAccepted, Payload: wire.FollowAcceptedPayload{By: 9}}
	assert.Equal(t, s.HandleEvent(ctx, ev), nil)
	assert.Equal(t, api.contactCalls, 1)
	assert.Equal(t, len(s.Requests()), 0)
	assert.Equal(t, s.Contacts()[0].MutualFollow, true)
}

func TestHandleRawOnlineUsers(t *testing.T) {
	s := NewSession(newFakeAPI(me), me)
	raw, _ := json.Marshal([]uint{2, 5})

	assert.Equal(t, s.HandleRaw(context.Background(), string(wire.EventOnlineUsers), raw), nil)
	assert.Equal(t, s.Online(5), true)
	assert.Equal(t, s.Online(3), false)

	assert.NotEqual(t, s.HandleRaw(context.Background(), "bogus", raw), nil)
}
