package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/repository"
)

// TestStudentJourney drives the whole stack through one realistic session:
// two accounts register, an instructor publishes a course, a student enrolls,
// opens a discussion on a lesson, leaves a rated comment and reads the thread
// back. Everything runs against real repositories on an in-memory database so
// the services, repositories and model associations are exercised together.
func TestStudentJourney(t *testing.T) {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Lesson{},
		&models.Discussion{},
		&models.Comment{},
	))

	users := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	bus := &stubBus{}
	validate := testValidator()
	logger := testLogger()

	auth := NewAuthService(users, validate, "journey-secret", time.Hour, nil, logger)
	courses := NewCourseService(courseRepo, users, bus, validate, logger)
	discussions := NewDiscussionService(discussionRepo, courseRepo, bus, validate, logger)
	comments := NewCommentService(commentRepo, discussionRepo, courseRepo, bus, validate, logger)

	instructor, err := auth.Register(ctx, dto.RegisterRequest{
		Name:     "Noa Levin",
		Email:    "noa@example.com",
		Password: "teachers-pass",
		Role:     "user",
	})
	require.NoError(t, err)

	student, err := auth.Register(ctx, dto.RegisterRequest{
		Name:     "Avi Cohen",
		Email:    "avi@example.com",
		Password: "students-pass",
		Role:     "user",
	})
	require.NoError(t, err)

	login, err := auth.Login(ctx, dto.LoginRequest{Email: "avi@example.com", Password: "students-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)
	require.Equal(t, student.ID, login.User.ID)

	instructorActor := Actor{ID: instructor.ID, Name: instructor.Name, Email: instructor.Email, Role: instructor.Role}
	studentActor := Actor{ID: student.ID, Name: student.Name, Email: student.Email, Role: student.Role}

	course, err := courses.Create(ctx, instructorActor, dto.CourseCreateRequest{
		Title:           "Go Basics",
		Description:     "An introduction to the Go language",
		Category:        "programming",
		DifficultyLevel: models.DifficultyBeginner,
		Lessons: []dto.LessonInput{{
			Title:    "Hello, World",
			Content:  "Your first program",
			VideoURL: "https://video.example.com/hello",
		}},
	})
	require.NoError(t, err)
	require.Len(t, course.Lessons, 1)
	lessonID := course.Lessons[0].ID

	require.NoError(t, courses.Enroll(ctx, course.ID, studentActor))
	require.ErrorIs(t, courses.Enroll(ctx, course.ID, studentActor), ErrAlreadyEnrolled)

	status, err := courses.EnrollmentStatus(ctx, course.ID, studentActor)
	require.NoError(t, err)
	require.True(t, status.Enrolled)

	enrolled, err := courses.EnrolledCourses(ctx, studentActor)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	require.Equal(t, course.ID, enrolled[0].ID)

	require.NoError(t, courses.SaveLessonProgress(ctx, course.ID, lessonID, studentActor))

	discussion, err := discussions.Create(ctx, studentActor, dto.DiscussionCreateRequest{
		Title:    "Stuck on the import path",
		CourseID: &course.ID,
		LessonID: &lessonID,
	})
	require.NoError(t, err)
	require.Equal(t, "Avi Cohen", discussion.CreatorName)

	comment, err := comments.Add(ctx, studentActor, discussion.ID, dto.CommentCreateRequest{
		Content: "Solved it, the module path was wrong",
		Rating:  5,
	}, nil)
	require.NoError(t, err)

	thread, err := discussions.Get(ctx, studentActor, discussion.ID)
	require.NoError(t, err)
	require.Equal(t, discussion.ID, thread.ID)
	require.Equal(t, course.ID, thread.CourseID)
	require.Equal(t, lessonID, thread.LessonID)
	require.Len(t, thread.Responses, 1)
	require.Equal(t, comment.ID, thread.Responses[0].ID)
	require.Equal(t, "Solved it, the module path was wrong", thread.Responses[0].Content)
	require.Equal(t, 5, thread.Responses[0].Rating)

	require.Contains(t, bus.published(), "course.created")
	require.Contains(t, bus.published(), "discussion.created")
	require.Contains(t, bus.published(), "comment.added")
}
