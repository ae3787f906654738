package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

// MessageRepository persists chat messages for history and participant lookups.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByDiscussion(ctx context.Context, discussionID uint) ([]models.Message, error)
	DistinctSenderIDs(ctx context.Context, discussionID uint) ([]uint, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a GORM-backed repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByDiscussion returns the discussion's full history in chronological
// order, the row id breaking creation-time ties.
func (r *messageRepository) ListByDiscussion(ctx context.Context, discussionID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Preload("Sender").
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) DistinctSenderIDs(ctx context.Context, discussionID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("discussion_id = ?", discussionID).
		Distinct("sender_id").
		Pluck("sender_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
