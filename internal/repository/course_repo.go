package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

// CourseFilter narrows the course listing.
type CourseFilter struct {
	InstructorID    uint
	Category        string
	DifficultyLevel string
	Search          string
	Skip            int
	Limit           int
}

// CourseRepository persists courses and their lessons.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, error)
	Categories(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id uint) (models.Course, error)
	GetByTitle(ctx context.Context, title string) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course, lessons []models.Lesson, replaceLessons bool) error
	Deactivate(ctx context.Context, id uint) error
	GetLesson(ctx context.Context, id uint) (models.Lesson, error)
	GetLessonByTitle(ctx context.Context, title string) (models.Lesson, error)
	ListLessonRefs(ctx context.Context, courseID uint) ([]models.Lesson, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func withLessons(db *gorm.DB) *gorm.DB {
	return db.Preload("Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	})
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	query := r.db.WithContext(ctx).Where("active = ?", true)
	if filter.InstructorID != 0 {
		query = query.Where("instructor_id = ?", filter.InstructorID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.DifficultyLevel != "" {
		query = query.Where("difficulty_level = ?", filter.DifficultyLevel)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var courses []models.Course
	if err := withLessons(query).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("active = ?", true).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *courseRepository) Get(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := withLessons(r.db.WithContext(ctx)).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) GetByTitle(ctx context.Context, title string) (models.Course, error) {
	var course models.Course
	if err := withLessons(r.db.WithContext(ctx)).Where("title = ?", title).First(&course).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

// Update saves the course row and, when replaceLessons is set, swaps the
// lesson set wholesale inside the same transaction.
func (r *courseRepository) Update(ctx context.Context, course *models.Course, lessons []models.Lesson, replaceLessons bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replaceLessons {
			if err := tx.Where("course_id = ?", course.ID).Delete(&models.Lesson{}).Error; err != nil {
				return err
			}
			for i := range lessons {
				lessons[i].CourseID = course.ID
			}
			if len(lessons) > 0 {
				if err := tx.Create(&lessons).Error; err != nil {
					return err
				}
			}
			course.Lessons = lessons
		}
		return tx.Omit("Lessons").Save(course).Error
	})
}

// Deactivate soft-deletes the course and prunes all enrollment references to it.
func (r *courseRepository) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Course{}).Where("id = ?", id).Update("active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Exec("DELETE FROM enrollments WHERE course_id = ?", id).Error
	})
}

func (r *courseRepository) GetLesson(ctx context.Context, id uint) (models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (r *courseRepository) GetLessonByTitle(ctx context.Context, title string) (models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Where("title = ?", title).First(&lesson).Error; err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (r *courseRepository) ListLessonRefs(ctx context.Context, courseID uint) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if err := r.db.WithContext(ctx).
		Select("id", "title").
		Where("course_id = ?", courseID).
		Order("position ASC, id ASC").
		Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}
