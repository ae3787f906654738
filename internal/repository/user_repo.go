package repository

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

// ErrAdminExists indicates an admin account is already registered; at most one
// admin may exist platform-wide.
var ErrAdminExists = errors.New("an admin account already exists")

// ErrAlreadyEnrolled indicates the user is already enrolled in the course.
var ErrAlreadyEnrolled = errors.New("already enrolled in course")

// UserRepository persists user accounts, enrollments and lesson progress.
type UserRepository interface {
	Register(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, skip, limit int) ([]models.User, error)
	SetBlocked(ctx context.Context, id uint, blocked bool) (models.User, error)
	Enroll(ctx context.Context, userID, courseID uint) error
	IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error)
	ListEnrolledCourses(ctx context.Context, userID uint) ([]models.Course, error)
	SaveLessonProgress(ctx context.Context, userID, courseID, lessonID uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Register inserts the user. For admin registrations the singleton-admin check
// runs inside the same transaction as the insert, so two concurrent admin
// registrations cannot both succeed.
func (r *userRepository) Register(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.Role == models.RoleAdmin {
			var count int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrAdminExists
			}
		}
		return tx.Create(user).Error
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if skip < 0 {
		skip = 0
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) SetBlocked(ctx context.Context, id uint, blocked bool) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		user.Blocked = blocked
		return tx.Save(&user).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Enroll(ctx context.Context, userID, courseID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Table("enrollments").
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyEnrolled
		}
		return tx.Exec("INSERT INTO enrollments (user_id, course_id) VALUES (?, ?)", userID, courseID).Error
	})
}

func (r *userRepository) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Table("enrollments").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ListEnrolledCourses(ctx context.Context, userID uint) ([]models.Course, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Enrollments", "active = ?", true).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return user.Enrollments, nil
}

// SaveLessonProgress marks a lesson complete inside the per-user progress map.
// The read-modify-write runs in a transaction so concurrent saves for the same
// user cannot drop each other's entries.
func (r *userRepository) SaveLessonProgress(ctx context.Context, userID, courseID, lessonID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		if user.LessonProgress == nil {
			user.LessonProgress = datatypes.JSONMap{}
		}

		courseKey := uintKey(courseID)
		lessonKey := uintKey(lessonID)

		lessons, _ := user.LessonProgress[courseKey].(map[string]interface{})
		if lessons == nil {
			lessons = map[string]interface{}{}
		}
		lessons[lessonKey] = true
		user.LessonProgress[courseKey] = lessons

		return tx.Save(&user).Error
	})
}

func uintKey(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
