// Package listener handles actions arriving on the inbound queues.
package listener

import (
	"encoding/json"
	"errors"
	"fmt"

	"dm-service/event"
	"dm-service/wire"

	"github.com/golang/glog"
)

// ActionNotify asks the service to push an event to one user.
const ActionNotify = "notify"

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrKindForbidden = errors.New("event kind may not be sent through notify")
)

// notifiable are the kinds other services may push to users. Message and
// presence events only come from this service.
var notifiable = map[wire.EventKind]bool{
	wire.EventFollowRequest:  true,
	wire.EventFollowAccepted: true,
}

type Notifier interface {
	Notify(user uint, kind wire.EventKind, payload any) int
}

type NotifyRequest struct {
	User    uint            `json:"user"`
	Kind    wire.EventKind  `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type API struct {
	Channel  chan event.Envelope
	notifier Notifier
}

func NewAPI(notifier Notifier) *API {
	return &API{
		Channel:  make(chan event.Envelope),
		notifier: notifier,
	}
}

// Subscription binds the listener to the api queue.
func (a *API) Subscription() event.Subscription {
	return event.Subscription{Queue: event.QueueAPI, Channel: a.Channel}
}

// Run handles envelopes until the channel is closed.
func (a *API) Run() {
	for envelope := range a.Channel {
		if err := a.Handle(envelope); err != nil {
			glog.Warningf("listener: %s: %v", envelope.Action, err)
		}
	}
}

// Handle decodes one envelope and performs it. Replayed envelopes that
// may not send are decoded but not pushed.
func (a *API) Handle(envelope event.Envelope) error {
	switch envelope.Action {
	case ActionNotify:
		request := NotifyRequest{}
		if err := json.Unmarshal(envelope.Data, &request); err != nil {
			return fmt.Errorf("decode notify: %w", err)
		}
		if request.User == 0 {
			return errors.New("notify without user")
		}
		if !notifiable[request.Kind] {
			return fmt.Errorf("%w: %s", ErrKindForbidden, request.Kind)
		}
		ev, err := wire.DecodeEvent(request.Kind, request.Payload)
		if err != nil {
			return err
		}
		if !envelope.Out.Send {
			return nil
		}
		delivered := a.notifier.Notify(request.User, ev.Kind, ev.Payload)
		glog.V(1).Infof("listener: notify %s to user %d reached %d connections", ev.Kind, request.User, delivered)
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownAction, envelope.Action)
}
