package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/broker"
	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/observability"
	"github.com/noam-katz/lomda-api/internal/repository"
)

var (
	// ErrCourseNotFound indicates the course selector resolved to nothing.
	ErrCourseNotFound = errors.New("course not found")
	// ErrLessonNotFound indicates the lesson selector resolved to nothing.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrLessonCourseMismatch indicates the lesson does not belong to the selected course.
	ErrLessonCourseMismatch = errors.New("lesson does not belong to the selected course")
)

// DiscussionService exposes thread creation, listing and moderation.
type DiscussionService interface {
	Create(ctx context.Context, actor Actor, payload dto.DiscussionCreateRequest) (dto.DiscussionResponse, error)
	List(ctx context.Context, viewer Actor, query dto.DiscussionListQuery) ([]dto.DiscussionResponse, error)
	Get(ctx context.Context, viewer Actor, id uint) (dto.DiscussionResponse, error)
	SetBlocked(ctx context.Context, id uint, blocked bool) (dto.DiscussionResponse, error)
}

type discussionService struct {
	repo      repository.DiscussionRepository
	courses   repository.CourseRepository
	bus       broker.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewDiscussionService constructs a discussion service.
func NewDiscussionService(repo repository.DiscussionRepository, courses repository.CourseRepository, bus broker.Publisher, validate *validator.Validate, logger zerolog.Logger) DiscussionService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &discussionService{
		repo:      repo,
		courses:   courses,
		bus:       bus,
		validator: validate,
		logger:    logger.With().Str("component", "discussion_service").Logger(),
		tracer:    otel.Tracer("github.com/noam-katz/lomda-api/internal/service/discussion"),
		sanitizer: policy,
	}
}

func (s *discussionService) Create(ctx context.Context, actor Actor, payload dto.DiscussionCreateRequest) (dto.DiscussionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DiscussionResponse{}, err
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if title == "" {
		return dto.DiscussionResponse{}, errors.New("discussion title empty after sanitization")
	}

	course, err := s.resolveCourse(ctx, payload)
	if err != nil {
		return dto.DiscussionResponse{}, err
	}

	lesson, err := s.resolveLesson(ctx, payload)
	if err != nil {
		return dto.DiscussionResponse{}, err
	}

	if lesson.CourseID != course.ID {
		return dto.DiscussionResponse{}, ErrLessonCourseMismatch
	}

	spanCtx, span := s.tracer.Start(ctx, "discussion.create", trace.WithAttributes(
		attribute.Int("discussion.course_id", int(course.ID)),
		attribute.Int("discussion.lesson_id", int(lesson.ID)),
		attribute.Int("discussion.creator_id", int(actor.ID)),
	))
	defer span.End()

	creatorName := strings.TrimSpace(actor.Name)
	if creatorName == "" {
		creatorName = "user"
	}

	discussion := models.Discussion{
		UserID:      actor.ID,
		CourseID:    course.ID,
		LessonID:    lesson.ID,
		Title:       title,
		CreatorName: creatorName,
	}

	if err := s.repo.Create(spanCtx, &discussion); err != nil {
		span.RecordError(err)
		return dto.DiscussionResponse{}, err
	}

	s.logger.Info().
		Uint("discussion_id", discussion.ID).
		Uint("course_id", course.ID).
		Uint("lesson_id", lesson.ID).
		Msg("discussion created")

	response := dto.NewDiscussionResponse(discussion, actor.IsAdmin())
	s.bus.Publish(spanCtx, broker.EventDiscussionCreated, response)
	observability.ForumEvents().WithLabelValues(broker.EventDiscussionCreated).Inc()

	return response, nil
}

func (s *discussionService) List(ctx context.Context, viewer Actor, query dto.DiscussionListQuery) ([]dto.DiscussionResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	discussions, err := s.repo.List(ctx, repository.DiscussionFilter{
		CourseID: query.Course,
		LessonID: query.Lesson,
		Skip:     query.Skip,
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewDiscussionResponseSlice(discussions, viewer.IsAdmin()), nil
}

func (s *discussionService) Get(ctx context.Context, viewer Actor, id uint) (dto.DiscussionResponse, error) {
	discussion, err := s.repo.Get(ctx, id)
	if err != nil {
		return dto.DiscussionResponse{}, err
	}
	return dto.NewDiscussionResponse(discussion, viewer.IsAdmin()), nil
}

// SetBlocked flips the moderation flag. Repeating the same value is a no-op
// returning the unchanged record.
func (s *discussionService) SetBlocked(ctx context.Context, id uint, blocked bool) (dto.DiscussionResponse, error) {
	discussion, err := s.repo.SetBlocked(ctx, id, blocked)
	if err != nil {
		return dto.DiscussionResponse{}, err
	}

	s.logger.Info().Uint("discussion_id", id).Bool("blocked", blocked).Msg("discussion block flag updated")

	return dto.NewDiscussionResponse(discussion, true), nil
}

func (s *discussionService) resolveCourse(ctx context.Context, payload dto.DiscussionCreateRequest) (models.Course, error) {
	var (
		course models.Course
		err    error
	)

	switch {
	case payload.CourseID != nil:
		course, err = s.courses.Get(ctx, *payload.CourseID)
	case strings.TrimSpace(payload.CourseTitle) != "":
		course, err = s.courses.GetByTitle(ctx, strings.TrimSpace(payload.CourseTitle))
	default:
		return models.Course{}, ErrCourseNotFound
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

func (s *discussionService) resolveLesson(ctx context.Context, payload dto.DiscussionCreateRequest) (models.Lesson, error) {
	var (
		lesson models.Lesson
		err    error
	)

	switch {
	case payload.LessonID != nil:
		lesson, err = s.courses.GetLesson(ctx, *payload.LessonID)
	case strings.TrimSpace(payload.LessonTitle) != "":
		lesson, err = s.courses.GetLessonByTitle(ctx, strings.TrimSpace(payload.LessonTitle))
	default:
		return models.Lesson{}, ErrLessonNotFound
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Lesson{}, ErrLessonNotFound
		}
		return models.Lesson{}, err
	}
	return lesson, nil
}
