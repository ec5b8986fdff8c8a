// Package gate decides whether two users may converse: both must follow
// each other. The answer is recomputed from the follow edges on every call.
package gate

import (
	"context"
	"slices"
	"time"

	"dm-service/apperror"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// LockedMessage is shown to a user whose conversation is not unlocked.
const LockedMessage = "Chat locked until both users follow each other"

// Relations is the read side of the relationship store.
type Relations interface {
	// Following returns the users that user follows through a pending or
	// accepted edge, or an error if user cannot be resolved.
	Following(ctx context.Context, user uint) ([]uint, error)
}

type Gate struct {
	relations Relations
	timeout   time.Duration
}

// New returns a Gate reading from relations. A positive timeout bounds each check.
func New(relations Relations, timeout time.Duration) *Gate {
	return &Gate{relations: relations, timeout: timeout}
}

// IsUnlocked reports whether a follows b and b follows a. It fails closed:
// any lookup error, an unknown user or a == b yields false.
func (g *Gate) IsUnlocked(ctx context.Context, a, b uint) bool {
	if a == 0 || b == 0 || a == b {
		return false
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var aFollows, bFollows []uint
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		aFollows, err = g.relations.Following(groupCtx, a)
		return
	})
	group.Go(func() (err error) {
		bFollows, err = g.relations.Following(groupCtx, b)
		return
	})
	if err := group.Wait(); err != nil {
		glog.V(1).Infof("gate: %d<->%d locked: %v", a, b, err)
		return false
	}

	return slices.Contains(aFollows, b) && slices.Contains(bFollows, a)
}

// Check returns an authorization error when the conversation of a and b is locked.
func (g *Gate) Check(ctx context.Context, a, b uint) error {
	if !g.IsUnlocked(ctx, a, b) {
		return apperror.Authorization(LockedMessage)
	}
	return nil
}
