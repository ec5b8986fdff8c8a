// Package follow manages the directed follow edges that unlock
// conversations and notifies the users involved.
package follow

import (
	"context"
	"errors"
	"time"

	"dm-service/apperror"
	"dm-service/database"
	"dm-service/model"
	"dm-service/wire"

	"github.com/golang/glog"
)

const (
	ActionFollowRequested = "follow.requested"
	ActionFollowAccepted  = "follow.accepted"

	// PreviewLimit bounds the incoming requests shown in a preview.
	PreviewLimit = 2
)

type Relations interface {
	Request(ctx context.Context, from, to uint) (*model.Follow, bool, error)
	Edge(ctx context.Context, from, to uint) (*model.Follow, error)
	MakeMutual(ctx context.Context, a, b uint) error
	Accept(ctx context.Context, id, user uint) (*model.Follow, error)
	Reject(ctx context.Context, id, user uint) (*model.Follow, error)
	Incoming(ctx context.Context, user uint, limit int) ([]model.Follow, error)
}

type Users interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

type Gate interface {
	IsUnlocked(ctx context.Context, a, b uint) bool
}

type Notifier interface {
	FollowRequest(target, id, from uint) int
	FollowAccepted(user, by uint) int
}

type Publisher interface {
	Publish(action string, data any)
}

type Service struct {
	relations Relations
	users     Users
	gate      Gate
	notifier  Notifier
	publisher Publisher
	timeout   time.Duration
}

type discard struct{}

func (discard) Publish(string, any) {}

func New(relations Relations, users Users, gate Gate, notifier Notifier, publisher Publisher, timeout time.Duration) *Service {
	if publisher == nil {
		publisher = discard{}
	}
	return &Service{
		relations: relations,
		users:     users,
		gate:      gate,
		notifier:  notifier,
		publisher: publisher,
		timeout:   timeout,
	}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func storeError(message string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return apperror.Transient("Relationship store unavailable", err)
}

// RequestFollow records that from wants to follow to. When to already
// follows from, the pair becomes mutual at once and both sides are told.
func (s *Service) RequestFollow(ctx context.Context, from, to uint) (*wire.FollowRequest, error) {
	if from == to {
		return nil, apperror.Validation("Cannot follow yourself")
	}

	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	exists, err := s.users.Exists(storeCtx, to)
	if err != nil {
		return nil, apperror.Transient("User store unavailable", err)
	}
	if !exists {
		return nil, apperror.NotFound("User not found")
	}

	edge, changed, err := s.relations.Request(storeCtx, from, to)
	if err != nil {
		return nil, storeError("User not found", err)
	}
	if edge.Status == model.FollowAccepted {
		request := wire.FromFollow(edge)
		return &request, nil
	}

	reverse, err := s.relations.Edge(storeCtx, to, from)
	switch {
	case err == nil && reverse.Established():
		if err := s.relations.MakeMutual(storeCtx, from, to); err != nil {
			return nil, storeError("User not found", err)
		}
		edge.Status = model.FollowAccepted
		s.notifier.FollowAccepted(from, to)
		s.notifier.FollowAccepted(to, from)
		s.publisher.Publish(ActionFollowAccepted, map[string]uint{"from": from, "to": to})
		glog.V(1).Infof("follow: %d<->%d mutual on request", from, to)
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return nil, storeError("User not found", err)
	case changed:
		s.notifier.FollowRequest(to, edge.ID, from)
		s.publisher.Publish(ActionFollowRequested, wire.FromFollow(edge))
	}

	request := wire.FromFollow(edge)
	return &request, nil
}

// AcceptFollow resolves a pending request addressed to me and makes the
// follow mutual.
func (s *Service) AcceptFollow(ctx context.Context, me, requestID uint) error {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	edge, err := s.relations.Accept(storeCtx, requestID, me)
	if err != nil {
		return storeError("Request not found", err)
	}

	s.notifier.FollowAccepted(edge.FromID, me)
	s.notifier.FollowAccepted(me, edge.FromID)
	s.publisher.Publish(ActionFollowAccepted, map[string]uint{"from": edge.FromID, "to": me})
	return nil
}

func (s *Service) RejectFollow(ctx context.Context, me, requestID uint) error {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	if _, err := s.relations.Reject(storeCtx, requestID, me); err != nil {
		return storeError("Request not found", err)
	}
	return nil
}

// Incoming lists the pending requests addressed to me, newest first.
func (s *Service) Incoming(ctx context.Context, me uint, limit int) ([]wire.FollowRequest, error) {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	edges, err := s.relations.Incoming(storeCtx, me, limit)
	if err != nil {
		return nil, storeError("User not found", err)
	}
	requests := make([]wire.FollowRequest, 0, len(edges))
	for i := range edges {
		requests = append(requests, wire.FromFollow(&edges[i]))
	}
	return requests, nil
}

// Mutual reports whether me and other follow each other.
func (s *Service) Mutual(ctx context.Context, me, other uint) (bool, error) {
	storeCtx, cancel := s.bounded(ctx)
	exists, err := s.users.Exists(storeCtx, other)
	cancel()
	if err != nil {
		return false, apperror.Transient("User store unavailable", err)
	}
	if !exists {
		return false, apperror.NotFound("User not found")
	}
	return s.gate.IsUnlocked(ctx, me, other), nil
}
