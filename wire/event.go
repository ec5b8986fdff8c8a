package wire

import (
	"encoding/json"
	"fmt"
)

// EventKind names a server to client push. The value is also the socket.io
// event name.
type EventKind string

const (
	EventNewMessage     EventKind = "newMessage"
	EventMessageDeleted EventKind = "messageDeleted"
	EventFollowRequest  EventKind = "followRequest"
	EventFollowAccepted EventKind = "followAccepted"
	EventOnlineUsers    EventKind = "onlineUsers"
)

// Event is one push addressed to a single connection.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

type FollowRequestPayload struct {
	Id   uint `json:"id"`
	From uint `json:"from"`
}

type FollowAcceptedPayload struct {
	By uint `json:"by"`
}

func NewMessageEvent(m Message) Event {
	return Event{Kind: EventNewMessage, Payload: m}
}

func MessageDeletedEvent(m Message) Event {
	return Event{Kind: EventMessageDeleted, Payload: m}
}

func OnlineUsersEvent(users []uint) Event {
	return Event{Kind: EventOnlineUsers, Payload: users}
}

// DecodeEvent turns a kind and its raw JSON payload back into a typed Event,
// as received by a client transport.
func DecodeEvent(kind EventKind, raw []byte) (Event, error) {
	var payload any
	switch kind {
	case EventNewMessage, EventMessageDeleted:
		payload = new(Message)
	case EventFollowRequest:
		payload = new(FollowRequestPayload)
	case EventFollowAccepted:
		payload = new(FollowAcceptedPayload)
	case EventOnlineUsers:
		payload = new([]uint)
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", kind)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", kind, err)
	}

	switch p := payload.(type) {
	case *Message:
		return Event{Kind: kind, Payload: *p}, nil
	case *FollowRequestPayload:
		return Event{Kind: kind, Payload: *p}, nil
	case *FollowAcceptedPayload:
		return Event{Kind: kind, Payload: *p}, nil
	case *[]uint:
		return Event{Kind: kind, Payload: *p}, nil
	}
	return Event{}, fmt.Errorf("unhandled payload for %q", kind)
}
