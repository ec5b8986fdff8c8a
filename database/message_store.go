package database

import (
	"context"
	"time"

	"dm-service/model"

	"gorm.io/gorm"
)

type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Append(ctx context.Context, m *model.Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *MessageStore) Get(ctx context.Context, id uint) (*model.Message, error) {
	m := new(model.Message)
	if err := s.db.WithContext(ctx).First(m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// Conversation returns every message between a and b, oldest first.
func (s *MessageStore) Conversation(ctx context.Context, a, b uint) ([]model.Message, error) {
	messages := []model.Message{}
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at asc").
		Order("id asc").
		Find(&messages).Error
	return messages, err
}

// MarkConversationSeen flags every unseen message from peer to reader as seen.
func (s *MessageStore) MarkConversationSeen(ctx context.Context, reader, peer uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", peer, reader, false).
		Update("seen", true)
	return result.RowsAffected, result.Error
}

// MarkSeen flags one message as seen and reports whether it changed.
func (s *MessageStore) MarkSeen(ctx context.Context, id uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND seen = ?", id, false).
		Update("seen", true)
	return result.RowsAffected > 0, result.Error
}

// Redact soft deletes a message. The update is conditional on the message
// not being deleted yet, so concurrent deletes change it exactly once.
func (s *MessageStore) Redact(ctx context.Context, id uint) (*model.Message, bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{
			"deleted": true,
			"text":    model.DeletedPlaceholder,
			"image":   "",
		})
	if result.Error != nil {
		return nil, false, result.Error
	}

	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return m, result.RowsAffected > 0, nil
}

// UnseenCounts returns, per sender, how many messages to reader are unseen.
func (s *MessageStore) UnseenCounts(ctx context.Context, reader uint) (map[uint]int64, error) {
	rows := []struct {
		SenderID uint
		Unseen   int64
	}{}
	err := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("sender_id, count(*) as unseen").
		Where("receiver_id = ? AND seen = ?", reader, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Unseen
	}
	return counts, nil
}

// LastActivity returns, per peer, the creation time of the latest message
// exchanged with user.
func (s *MessageStore) LastActivity(ctx context.Context, user uint) (map[uint]time.Time, error) {
	latest := []struct {
		Peer   uint
		LastID uint
	}{}
	err := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END as peer, max(id) as last_id", user).
		Where("sender_id = ? OR receiver_id = ?", user, user).
		Group("peer").
		Scan(&latest).Error
	if err != nil {
		return nil, err
	}

	activity := make(map[uint]time.Time, len(latest))
	if len(latest) == 0 {
		return activity, nil
	}

	ids := make([]uint, 0, len(latest))
	peers := make(map[uint]uint, len(latest))
	for _, row := range latest {
		ids = append(ids, row.LastID)
		peers[row.LastID] = row.Peer
	}

	messages := []model.Message{}
	if err := s.db.WithContext(ctx).Select("id", "created_at").Find(&messages, ids).Error; err != nil {
		return nil, err
	}
	for _, m := range messages {
		activity[peers[m.ID]] = m.CreatedAt
	}
	return activity, nil
}
