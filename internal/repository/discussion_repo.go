package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

// DiscussionFilter narrows the discussion listing.
type DiscussionFilter struct {
	CourseID uint
	LessonID uint
	Skip     int
	Limit    int
}

// DiscussionRepository persists discussion threads.
type DiscussionRepository interface {
	Create(ctx context.Context, discussion *models.Discussion) error
	List(ctx context.Context, filter DiscussionFilter) ([]models.Discussion, error)
	Get(ctx context.Context, id uint) (models.Discussion, error)
	GetBare(ctx context.Context, id uint) (models.Discussion, error)
	SetBlocked(ctx context.Context, id uint, blocked bool) (models.Discussion, error)
}

type discussionRepository struct {
	db *gorm.DB
}

// NewDiscussionRepository constructs a GORM-backed repository.
func NewDiscussionRepository(db *gorm.DB) DiscussionRepository {
	return &discussionRepository{db: db}
}

func withDiscussionAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Lesson").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Responses.User")
}

func (r *discussionRepository) Create(ctx context.Context, discussion *models.Discussion) error {
	return r.db.WithContext(ctx).Create(discussion).Error
}

func (r *discussionRepository) List(ctx context.Context, filter DiscussionFilter) ([]models.Discussion, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	query := r.db.WithContext(ctx)
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.LessonID != 0 {
		query = query.Where("lesson_id = ?", filter.LessonID)
	}

	var discussions []models.Discussion
	if err := withDiscussionAssociations(query).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&discussions).Error; err != nil {
		return nil, err
	}
	return discussions, nil
}

func (r *discussionRepository) Get(ctx context.Context, id uint) (models.Discussion, error) {
	var discussion models.Discussion
	if err := withDiscussionAssociations(r.db.WithContext(ctx)).First(&discussion, id).Error; err != nil {
		return models.Discussion{}, err
	}
	return discussion, nil
}

// GetBare fetches the row without associations, for existence and ownership checks.
func (r *discussionRepository) GetBare(ctx context.Context, id uint) (models.Discussion, error) {
	var discussion models.Discussion
	if err := r.db.WithContext(ctx).First(&discussion, id).Error; err != nil {
		return models.Discussion{}, err
	}
	return discussion, nil
}

func (r *discussionRepository) SetBlocked(ctx context.Context, id uint, blocked bool) (models.Discussion, error) {
	var discussion models.Discussion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&discussion, id).Error; err != nil {
			return err
		}
		discussion.Blocked = blocked
		return tx.Save(&discussion).Error
	})
	if err != nil {
		return models.Discussion{}, err
	}
	return discussion, nil
}
