package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

func TestUserRepositoryRegisterSingletonAdmin(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	first := models.User{Name: "Platform Admin", Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, repo.Register(context.Background(), &first))
	require.NotZero(t, first.ID)

	second := models.User{Name: "Another Admin", Email: "admin2@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	err := repo.Register(context.Background(), &second)
	require.ErrorIs(t, err, ErrAdminExists)

	learner := models.User{Name: "Learner", Email: "learner@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, repo.Register(context.Background(), &learner))
}

func TestUserRepositoryEnrollRejectsDuplicates(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	user := models.User{Name: "Learner", Email: "learner@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)
	course := models.Course{Title: "Go Basics", Description: "intro", DifficultyLevel: models.DifficultyBeginner, InstructorID: user.ID, Active: true}
	require.NoError(t, db.Create(&course).Error)

	require.NoError(t, repo.Enroll(context.Background(), user.ID, course.ID))
	require.ErrorIs(t, repo.Enroll(context.Background(), user.ID, course.ID), ErrAlreadyEnrolled)

	enrolled, err := repo.IsEnrolled(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	require.True(t, enrolled)

	courses, err := repo.ListEnrolledCourses(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Go Basics", courses[0].Title)
}

func TestUserRepositorySaveLessonProgressMerges(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	user := models.User{Name: "Learner", Email: "learner@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, repo.SaveLessonProgress(context.Background(), user.ID, 3, 10))
	require.NoError(t, repo.SaveLessonProgress(context.Background(), user.ID, 3, 11))

	stored, err := repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)

	lessons, ok := stored.LessonProgress["3"].(map[string]interface{})
	require.True(t, ok, "course key should hold a lesson map")
	require.Contains(t, lessons, "10")
	require.Contains(t, lessons, "11")
}

func TestUserRepositorySetBlockedRoundTrip(t *testing.T) {
	db := setupUserTestDB(t)
	repo := NewUserRepository(db)

	user := models.User{Name: "Learner", Email: "learner@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)

	blocked, err := repo.SetBlocked(context.Background(), user.ID, true)
	require.NoError(t, err)
	require.True(t, blocked.Blocked)

	unblocked, err := repo.SetBlocked(context.Background(), user.ID, false)
	require.NoError(t, err)
	require.False(t, unblocked.Blocked)

	_, err = repo.SetBlocked(context.Background(), 999, true)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func setupUserTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Course{}, &models.Lesson{}))
	return db
}
