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

func TestCourseRepositoryListFiltersAndSearch(t *testing.T) {
	db := setupCourseTestDB(t)
	repo := NewCourseRepository(db)

	active := models.Course{Title: "Go Basics", Description: "Learn the Go language", Category: "programming", DifficultyLevel: models.DifficultyBeginner, InstructorID: 1, Active: true}
	advanced := models.Course{Title: "Distributed Systems", Description: "Consensus and replication", Category: "systems", DifficultyLevel: models.DifficultyAdvanced, InstructorID: 2, Active: true}
	inactive := models.Course{Title: "Retired Course", Description: "gone", Category: "programming", DifficultyLevel: models.DifficultyBeginner, InstructorID: 1, Active: false}

	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Create(&advanced).Error)
	require.NoError(t, db.Create(&inactive).Error)

	// An explicit false must survive the insert; a column default would
	// swallow the zero value and resurrect the course.
	var stored models.Course
	require.NoError(t, db.First(&stored, inactive.ID).Error)
	require.False(t, stored.Active)

	all, err := repo.List(context.Background(), CourseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2, "inactive courses are hidden from the catalogue")

	byCategory, err := repo.List(context.Background(), CourseFilter{Category: "systems"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.Equal(t, "Distributed Systems", byCategory[0].Title)

	searched, err := repo.List(context.Background(), CourseFilter{Search: "rust"})
	require.NoError(t, err)
	require.Empty(t, searched)

	searched, err = repo.List(context.Background(), CourseFilter{Search: "GO BASICS"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	require.Equal(t, "Go Basics", searched[0].Title)

	categories, err := repo.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"programming", "systems"}, categories)
}

func TestCourseRepositoryUpdateReplacesLessonsWholesale(t *testing.T) {
	db := setupCourseTestDB(t)
	repo := NewCourseRepository(db)

	course := models.Course{
		Title:           "Go Basics",
		Description:     "intro",
		DifficultyLevel: models.DifficultyBeginner,
		InstructorID:    1,
		Active:          true,
		Lessons: []models.Lesson{
			{Position: 0, Title: "Hello", Content: "hello world", VideoURL: "https://video.example.com/1"},
			{Position: 1, Title: "Types", Content: "type system", VideoURL: "https://video.example.com/2"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), &course))
	require.Len(t, course.Lessons, 2)

	replacement := []models.Lesson{
		{Position: 0, Title: "Interfaces", Content: "interfaces", VideoURL: "https://video.example.com/3"},
	}
	require.NoError(t, repo.Update(context.Background(), &course, replacement, true))

	stored, err := repo.Get(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lessons, 1)
	require.Equal(t, "Interfaces", stored.Lessons[0].Title)

	// A nil lesson set with replaceLessons=false leaves lessons untouched.
	stored.Title = "Go Basics v2"
	require.NoError(t, repo.Update(context.Background(), &stored, nil, false))

	again, err := repo.Get(context.Background(), course.ID)
	require.NoError(t, err)
	require.Equal(t, "Go Basics v2", again.Title)
	require.Len(t, again.Lessons, 1)
}

func TestCourseRepositoryDeactivatePrunesEnrollments(t *testing.T) {
	db := setupCourseTestDB(t)
	repo := NewCourseRepository(db)
	users := NewUserRepository(db)

	user := models.User{Name: "Learner", Email: "learner@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)
	course := models.Course{Title: "Go Basics", Description: "intro", DifficultyLevel: models.DifficultyBeginner, InstructorID: 1, Active: true}
	require.NoError(t, db.Create(&course).Error)

	require.NoError(t, users.Enroll(context.Background(), user.ID, course.ID))

	require.NoError(t, repo.Deactivate(context.Background(), course.ID))

	enrolled, err := users.IsEnrolled(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	require.False(t, enrolled, "deactivation removes enrollments")

	require.ErrorIs(t, repo.Deactivate(context.Background(), 999), gorm.ErrRecordNotFound)
}

func TestCourseRepositoryTitleLookups(t *testing.T) {
	db := setupCourseTestDB(t)
	repo := NewCourseRepository(db)

	course := models.Course{
		Title:           "Go Basics",
		Description:     "intro",
		DifficultyLevel: models.DifficultyBeginner,
		InstructorID:    1,
		Active:          true,
		Lessons: []models.Lesson{
			{Position: 1, Title: "Types", Content: "types", VideoURL: "https://video.example.com/2"},
			{Position: 0, Title: "Hello", Content: "hello", VideoURL: "https://video.example.com/1"},
		},
	}
	require.NoError(t, repo.Create(context.Background(), &course))

	byTitle, err := repo.GetByTitle(context.Background(), "Go Basics")
	require.NoError(t, err)
	require.Equal(t, course.ID, byTitle.ID)

	lesson, err := repo.GetLessonByTitle(context.Background(), "Hello")
	require.NoError(t, err)
	require.Equal(t, course.ID, lesson.CourseID)

	_, err = repo.GetLessonByTitle(context.Background(), "Missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	refs, err := repo.ListLessonRefs(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "Hello", refs[0].Title, "lessons are ordered by position")
	require.Equal(t, "Types", refs[1].Title)
}

func setupCourseTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Course{}, &models.Lesson{}))
	return db
}
