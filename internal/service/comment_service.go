package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/broker"
	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/observability"
	"github.com/noam-katz/lomda-api/internal/repository"
)

// ErrCommentForbidden indicates the actor is neither the author nor an admin.
var ErrCommentForbidden = errors.New("comment does not belong to the actor")

// CommentService exposes comment creation, edits and moderation.
type CommentService interface {
	Add(ctx context.Context, actor Actor, discussionID uint, payload dto.CommentCreateRequest, imageURLs []string) (dto.CommentResponse, error)
	ListByCourse(ctx context.Context, viewer Actor, courseID uint) ([]dto.CommentResponse, error)
	Edit(ctx context.Context, actor Actor, id uint, payload dto.CommentUpdateRequest) (dto.CommentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	SetBlocked(ctx context.Context, id uint, blocked bool) (dto.CommentResponse, error)
}

type commentService struct {
	repo        repository.CommentRepository
	discussions repository.DiscussionRepository
	courses     repository.CourseRepository
	bus         broker.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
}

// NewCommentService constructs a comment service.
func NewCommentService(repo repository.CommentRepository, discussions repository.DiscussionRepository, courses repository.CourseRepository, bus broker.Publisher, validate *validator.Validate, logger zerolog.Logger) CommentService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &commentService{
		repo:        repo,
		discussions: discussions,
		courses:     courses,
		bus:         bus,
		validator:   validate,
		logger:      logger.With().Str("component", "comment_service").Logger(),
		tracer:      otel.Tracer("github.com/noam-katz/lomda-api/internal/service/comment"),
		sanitizer:   policy,
	}
}

// Add attaches a comment to the discussion, or directly to a lesson when the
// payload carries a lesson id.
func (s *commentService) Add(ctx context.Context, actor Actor, discussionID uint, payload dto.CommentCreateRequest, imageURLs []string) (dto.CommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommentResponse{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.CommentResponse{}, errors.New("comment content empty after sanitization")
	}

	comment := models.Comment{
		UserID:  actor.ID,
		Content: content,
		Rating:  payload.Rating,
	}

	if payload.LessonID != nil {
		if _, err := s.courses.GetLesson(ctx, *payload.LessonID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CommentResponse{}, ErrLessonNotFound
			}
			return dto.CommentResponse{}, err
		}
		comment.LessonID = payload.LessonID
	} else {
		if _, err := s.discussions.GetBare(ctx, discussionID); err != nil {
			return dto.CommentResponse{}, err
		}
		id := discussionID
		comment.DiscussionID = &id
	}

	if len(imageURLs) > 0 {
		raw, err := json.Marshal(imageURLs)
		if err != nil {
			return dto.CommentResponse{}, err
		}
		comment.Images = datatypes.JSON(raw)
	}

	spanCtx, span := s.tracer.Start(ctx, "comment.add", trace.WithAttributes(
		attribute.Int("comment.author_id", int(actor.ID)),
		attribute.Int("comment.discussion_id", int(discussionID)),
	))
	defer span.End()

	if err := s.repo.Create(spanCtx, &comment); err != nil {
		span.RecordError(err)
		return dto.CommentResponse{}, err
	}

	s.logger.Info().Uint("comment_id", comment.ID).Uint("discussion_id", discussionID).Msg("comment added")

	response := dto.NewCommentResponse(comment, actor.IsAdmin())
	response.Author = &dto.AuthorResponse{ID: actor.ID, Name: actor.Name}

	s.bus.Publish(spanCtx, broker.EventCommentAdded, response)
	observability.ForumEvents().WithLabelValues(broker.EventCommentAdded).Inc()

	return response, nil
}

func (s *commentService) ListByCourse(ctx context.Context, viewer Actor, courseID uint) ([]dto.CommentResponse, error) {
	if _, err := s.courses.Get(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	comments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewCommentResponseSlice(comments, viewer.IsAdmin()), nil
}

func (s *commentService) Edit(ctx context.Context, actor Actor, id uint, payload dto.CommentUpdateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommentResponse{}, err
	}

	comment, err := s.authorizeMutation(ctx, actor, id)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.CommentResponse{}, errors.New("comment content empty after sanitization")
	}

	comment.Content = content
	comment.Rating = payload.Rating

	if err := s.repo.Update(ctx, &comment); err != nil {
		return dto.CommentResponse{}, err
	}

	response := dto.NewCommentResponse(comment, actor.IsAdmin())
	s.bus.Publish(ctx, broker.EventCommentEdited, response)
	observability.ForumEvents().WithLabelValues(broker.EventCommentEdited).Inc()

	return response, nil
}

// Delete removes the comment. Thread membership is derived from the row
// itself, so there are no reference lists to clean up and a second delete
// simply reports not-found.
func (s *commentService) Delete(ctx context.Context, actor Actor, id uint) error {
	comment, err := s.authorizeMutation(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Uint("comment_id", id).Uint("actor_id", actor.ID).Msg("comment deleted")

	s.bus.Publish(ctx, broker.EventCommentDeleted, dto.NewCommentResponse(comment, true))
	observability.ForumEvents().WithLabelValues(broker.EventCommentDeleted).Inc()

	return nil
}

// SetBlocked flips the moderation flag. Repeating the same value is a no-op.
func (s *commentService) SetBlocked(ctx context.Context, id uint, blocked bool) (dto.CommentResponse, error) {
	comment, err := s.repo.SetBlocked(ctx, id, blocked)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	s.logger.Info().Uint("comment_id", id).Bool("blocked", blocked).Msg("comment block flag updated")

	response := dto.NewCommentResponse(comment, true)
	s.bus.Publish(ctx, broker.EventCommentBlocked, response)
	observability.ForumEvents().WithLabelValues(broker.EventCommentBlocked).Inc()

	return response, nil
}

func (s *commentService) authorizeMutation(ctx context.Context, actor Actor, id uint) (models.Comment, error) {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Comment{}, err
	}
	if comment.UserID != actor.ID && !actor.IsAdmin() {
		return models.Comment{}, ErrCommentForbidden
	}
	return comment, nil
}
