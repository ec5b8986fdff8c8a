package database

import (
	"context"
	"errors"

	"dm-service/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var establishedStatuses = []model.FollowStatus{model.FollowPending, model.FollowAccepted}

// RelationStore persists directed follow edges.
type RelationStore struct {
	db *gorm.DB
}

func NewRelationStore(db *gorm.DB) *RelationStore {
	return &RelationStore{db: db}
}

// Following returns the users that user follows through a pending or
// accepted edge. ErrNotFound if user does not exist.
func (s *RelationStore) Following(ctx context.Context, user uint) ([]uint, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.User{}).Where("id = ?", user).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	following := []uint{}
	err := db.Model(&model.Follow{}).
		Where("from_id = ? AND status IN ?", user, establishedStatuses).
		Pluck("to_id", &following).Error
	return following, err
}

// Edges returns every established edge that starts or ends at user.
func (s *RelationStore) Edges(ctx context.Context, user uint) ([]model.Follow, error) {
	edges := []model.Follow{}
	err := s.db.WithContext(ctx).
		Where("(from_id = ? OR to_id = ?) AND status IN ?", user, user, establishedStatuses).
		Find(&edges).Error
	return edges, err
}

func (s *RelationStore) Edge(ctx context.Context, from, to uint) (*model.Follow, error) {
	edge := new(model.Follow)
	if err := s.db.WithContext(ctx).Where("from_id = ? AND to_id = ?", from, to).First(edge).Error; err != nil {
		return nil, notFound(err)
	}
	return edge, nil
}

// Request records a pending edge from -> to. An existing pending or accepted
// edge is returned unchanged; a rejected one is reopened. The bool reports
// whether the edge became pending by this call.
func (s *RelationStore) Request(ctx context.Context, from, to uint) (*model.Follow, bool, error) {
	var changed bool
	edge := new(model.Follow)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("from_id = ? AND to_id = ?", from, to).First(edge).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			*edge = model.Follow{FromID: from, ToID: to, Status: model.FollowPending}
			changed = true
			return tx.Create(edge).Error
		case err != nil:
			return err
		case edge.Status == model.FollowRejected:
			changed = true
			edge.Status = model.FollowPending
			return tx.Model(edge).Update("status", model.FollowPending).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return edge, changed, nil
}

// MakeMutual accepts both directed edges between a and b, creating them as needed.
func (s *RelationStore) MakeMutual(ctx context.Context, a, b uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return acceptEdges(tx, a, b)
	})
}

// Accept resolves the pending request id addressed to user and makes the
// follow mutual. ErrNotFound if no such pending request exists.
func (s *RelationStore) Accept(ctx context.Context, id, user uint) (*model.Follow, error) {
	edge := new(model.Follow)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pending(tx, id, user, edge); err != nil {
			return err
		}
		if err := acceptEdges(tx, edge.FromID, edge.ToID); err != nil {
			return err
		}
		edge.Status = model.FollowAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// Reject resolves the pending request id addressed to user as rejected.
func (s *RelationStore) Reject(ctx context.Context, id, user uint) (*model.Follow, error) {
	edge := new(model.Follow)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pending(tx, id, user, edge); err != nil {
			return err
		}
		edge.Status = model.FollowRejected
		return tx.Model(edge).Update("status", model.FollowRejected).Error
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// Incoming lists pending requests addressed to user, newest first. A limit
// of zero or less means no limit.
func (s *RelationStore) Incoming(ctx context.Context, user uint, limit int) ([]model.Follow, error) {
	requests := []model.Follow{}
	query := s.db.WithContext(ctx).
		Where("to_id = ? AND status = ?", user, model.FollowPending).
		Preload("From").
		Order("created_at desc").
		Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&requests).Error
	return requests, err
}

func pending(tx *gorm.DB, id, user uint, edge *model.Follow) error {
	err := tx.Where("id = ? AND to_id = ? AND status = ?", id, user, model.FollowPending).First(edge).Error
	return notFound(err)
}

func acceptEdges(tx *gorm.DB, a, b uint) error {
	for _, pair := range [][2]uint{{a, b}, {b, a}} {
		edge := model.Follow{FromID: pair[0], ToID: pair[1], Status: model.FollowAccepted}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_id"}, {Name: "to_id"}},
			DoUpdates: clause.Assignments(map[string]any{"status": model.FollowAccepted}),
		}).Create(&edge).Error
		if err != nil {
			return err
		}
	}
	return nil
}
