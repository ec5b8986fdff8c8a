// Package notify pushes follow notifications to a single user's live
// connections. Notifications are dropped for offline users; clients
// re-fetch follow state when they load.
package notify

import (
	"dm-service/wire"

	"github.com/golang/glog"
)

// Sender delivers one event to every live connection of a user.
type Sender interface {
	Send(user uint, ev wire.Event) int
}

type Notifier struct {
	sender Sender
}

func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify pushes kind with payload to user and returns the number of
// connections reached.
func (n *Notifier) Notify(user uint, kind wire.EventKind, payload any) int {
	delivered := n.sender.Send(user, wire.Event{Kind: kind, Payload: payload})
	if delivered == 0 {
		glog.V(1).Infof("notify: %s for user %d dropped, no live connection", kind, user)
	}
	return delivered
}

// FollowRequest tells target that request id from from is waiting.
func (n *Notifier) FollowRequest(target, id, from uint) int {
	return n.Notify(target, wire.EventFollowRequest, wire.FollowRequestPayload{Id: id, From: from})
}

// FollowAccepted tells user that by now follows back.
func (n *Notifier) FollowAccepted(user, by uint) int {
	return n.Notify(user, wire.EventFollowAccepted, wire.FollowAcceptedPayload{By: by})
}
