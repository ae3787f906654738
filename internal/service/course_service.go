package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noam-katz/lomda-api/internal/broker"
	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/repository"
)

// ErrCourseForbidden indicates the actor may not mutate this course.
var ErrCourseForbidden = errors.New("insufficient permissions for course operation")

// ErrAlreadyEnrolled re-exports the repository sentinel for handler mapping.
var ErrAlreadyEnrolled = repository.ErrAlreadyEnrolled

// CourseService exposes course authoring, catalogue and enrollment use-cases.
type CourseService interface {
	List(ctx context.Context, query dto.CourseListQuery) ([]dto.CourseResponse, error)
	Categories(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, id uint, actor Actor, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Deactivate(ctx context.Context, id uint, actor Actor) error
	Enroll(ctx context.Context, id uint, actor Actor) error
	EnrollmentStatus(ctx context.Context, id uint, actor Actor) (dto.EnrollmentStatusResponse, error)
	EnrolledCourses(ctx context.Context, actor Actor) ([]dto.CourseResponse, error)
	SaveLessonProgress(ctx context.Context, courseID, lessonID uint, actor Actor) error
	LessonRefs(ctx context.Context, courseID uint) ([]dto.LessonRefResponse, error)
}

type courseService struct {
	repo      repository.CourseRepository
	users     repository.UserRepository
	bus       broker.Publisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewCourseService constructs a course service.
func NewCourseService(repo repository.CourseRepository, users repository.UserRepository, bus broker.Publisher, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:      repo,
		users:     users,
		bus:       bus,
		validator: validate,
		logger:    logger.With().Str("component", "course_service").Logger(),
		tracer:    otel.Tracer("github.com/noam-katz/lomda-api/internal/service/course"),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

func (s *courseService) List(ctx context.Context, query dto.CourseListQuery) ([]dto.CourseResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	courses, err := s.repo.List(ctx, repository.CourseFilter{
		InstructorID:    query.Instructor,
		Category:        query.Category,
		DifficultyLevel: query.DifficultyLevel,
		Search:          query.Search,
		Skip:            query.Skip,
		Limit:           query.Limit,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "course.create", trace.WithAttributes(
		attribute.Int("course.instructor_id", int(actor.ID)),
	))
	defer span.End()

	imageURL := payload.ImageURL
	if imageURL == "" {
		imageURL = models.DefaultCourseImageURL
	}

	lessons, err := buildLessons(payload.Lessons)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Title:           s.sanitizer.Sanitize(payload.Title),
		Description:     s.sanitizer.Sanitize(payload.Description),
		Category:        payload.Category,
		DifficultyLevel: payload.DifficultyLevel,
		InstructorID:    actor.ID,
		Active:          true,
		ImageURL:        imageURL,
		Lessons:         lessons,
	}

	if err := s.repo.Create(spanCtx, &course); err != nil {
		span.RecordError(err)
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("instructor_id", actor.ID).Msg("course created")
	s.bus.Publish(spanCtx, broker.EventCourseCreated, dto.NewCourseResponse(course))

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Update(ctx context.Context, id uint, actor Actor, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if course.InstructorID != actor.ID && !actor.IsAdmin() {
		return dto.CourseResponse{}, ErrCourseForbidden
	}

	if payload.Title != nil {
		course.Title = s.sanitizer.Sanitize(*payload.Title)
	}
	if payload.Description != nil {
		course.Description = s.sanitizer.Sanitize(*payload.Description)
	}
	if payload.Category != nil {
		course.Category = *payload.Category
	}
	if payload.DifficultyLevel != nil {
		course.DifficultyLevel = *payload.DifficultyLevel
	}
	if payload.ImageURL != nil && *payload.ImageURL != "" {
		course.ImageURL = *payload.ImageURL
	}

	replaceLessons := payload.Lessons != nil
	var lessons []models.Lesson
	if replaceLessons {
		if lessons, err = buildLessons(payload.Lessons); err != nil {
			return dto.CourseResponse{}, err
		}
	}

	if err := s.repo.Update(ctx, &course, lessons, replaceLessons); err != nil {
		return dto.CourseResponse{}, err
	}

	s.bus.Publish(ctx, broker.EventCourseUpdated, dto.NewCourseResponse(course))

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Deactivate(ctx context.Context, id uint, actor Actor) error {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if course.InstructorID != actor.ID && !actor.IsAdmin() {
		return ErrCourseForbidden
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Uint("course_id", id).Msg("course deactivated")
	s.bus.Publish(ctx, broker.EventCourseDeleted, map[string]uint{"course_id": id})

	return nil
}

func (s *courseService) Enroll(ctx context.Context, id uint, actor Actor) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.users.Enroll(ctx, actor.ID, id)
}

func (s *courseService) EnrollmentStatus(ctx context.Context, id uint, actor Actor) (dto.EnrollmentStatusResponse, error) {
	enrolled, err := s.users.IsEnrolled(ctx, actor.ID, id)
	if err != nil {
		return dto.EnrollmentStatusResponse{}, err
	}
	return dto.EnrollmentStatusResponse{Enrolled: enrolled}, nil
}

func (s *courseService) EnrolledCourses(ctx context.Context, actor Actor) ([]dto.CourseResponse, error) {
	courses, err := s.users.ListEnrolledCourses(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) SaveLessonProgress(ctx context.Context, courseID, lessonID uint, actor Actor) error {
	lesson, err := s.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if lesson.CourseID != courseID {
		return ErrLessonCourseMismatch
	}
	return s.users.SaveLessonProgress(ctx, actor.ID, courseID, lessonID)
}

func (s *courseService) LessonRefs(ctx context.Context, courseID uint) ([]dto.LessonRefResponse, error) {
	lessons, err := s.repo.ListLessonRefs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	refs := make([]dto.LessonRefResponse, 0, len(lessons))
	for _, lesson := range lessons {
		refs = append(refs, dto.LessonRefResponse{ID: lesson.ID, Title: lesson.Title})
	}
	return refs, nil
}

func buildLessons(inputs []dto.LessonInput) ([]models.Lesson, error) {
	lessons := make([]models.Lesson, 0, len(inputs))
	for i, input := range inputs {
		lesson := models.Lesson{
			Position: i,
			Title:    input.Title,
			Content:  input.Content,
			VideoURL: input.VideoURL,
			ImageURL: input.ImageURL,
		}
		if len(input.Quiz) > 0 {
			raw, err := json.Marshal(input.Quiz)
			if err != nil {
				return nil, err
			}
			lesson.Quiz = datatypes.JSON(raw)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}
