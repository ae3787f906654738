package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

// CommentRepository persists forum comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Get(ctx context.Context, id uint) (models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
	SetBlocked(ctx context.Context, id uint, blocked bool) (models.Comment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a GORM-backed repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) Get(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepository) SetBlocked(ctx context.Context, id uint, blocked bool) (models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&comment, id).Error; err != nil {
			return err
		}
		comment.Blocked = blocked
		return tx.Save(&comment).Error
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// ListByCourse returns comments attached directly to any lesson of the course.
func (r *commentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Joins("JOIN lessons ON lessons.id = comments.lesson_id").
		Where("lessons.course_id = ?", courseID).
		Preload("User").
		Order("comments.created_at DESC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
