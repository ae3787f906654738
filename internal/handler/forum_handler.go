package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/middleware"
	"github.com/noam-katz/lomda-api/internal/service"
	"github.com/noam-katz/lomda-api/internal/utils"
)

// ForumHandler provides discussion and comment endpoints.
type ForumHandler struct {
	discussions service.DiscussionService
	comments    service.CommentService
	courses     service.CourseService
	uploads     service.UploadService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewForumHandler constructs a handler instance.
func NewForumHandler(discussions service.DiscussionService, comments service.CommentService, courses service.CourseService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *ForumHandler {
	return &ForumHandler{
		discussions: discussions,
		comments:    comments,
		courses:     courses,
		uploads:     uploads,
		validator:   validator,
		logger:      logger.With().Str("component", "forum_handler").Logger(),
	}
}

// Register binds the forum routes. Reads are open to anonymous browsing
// (blocked content renders as a placeholder for guests); writes require an
// account and moderation requires an admin.
func (h *ForumHandler) Register(router fiber.Router) {
	user := middleware.AuthOptions{Role: middleware.AuthRoleUser}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("/discussions", h.listDiscussions)
	router.Post("/discussions", middleware.WithAuth(h.createDiscussion, user))
	router.Get("/discussions/:id", h.getDiscussion)
	router.Post("/discussions/:id/comments", middleware.WithAuth(h.addComment, user))

	router.Get("/comments", h.listComments)
	router.Put("/comments/:id", middleware.WithAuth(h.editComment, user))
	router.Delete("/comments/:id", middleware.WithAuth(h.deleteComment, user))

	router.Get("/lessons/:courseId", h.lessonRefs)

	router.Put("/discussions/:id/block", middleware.WithAuth(h.blockDiscussion, admin))
	router.Post("/comments/:id/block", middleware.WithAuth(h.blockComment, admin))
}

func (h *ForumHandler) listDiscussions(c *fiber.Ctx) error {
	var query dto.DiscussionListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	ctx := withRequestContext(c)

	discussions, err := h.discussions.List(ctx, actorFromContext(c), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "discussions", discussions)
}

func (h *ForumHandler) createDiscussion(c *fiber.Ctx) error {
	var payload dto.DiscussionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	discussion, err := h.discussions.Create(ctx, actorFromContext(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCourseNotFound),
			errors.Is(err, service.ErrLessonNotFound),
			errors.Is(err, service.ErrLessonCourseMismatch):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "discussion created", discussion)
}

func (h *ForumHandler) getDiscussion(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	discussion, err := h.discussions.Get(ctx, actorFromContext(c), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "discussion not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "discussion", discussion)
}

func (h *ForumHandler) blockDiscussion(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BlockRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	discussion, err := h.discussions.SetBlocked(ctx, id, *payload.Blocked)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "discussion not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "discussion block flag updated", discussion)
}

func (h *ForumHandler) addComment(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	ctx := withRequestContext(c)

	imageURLs, err := h.storeCommentImages(c)
	if err != nil {
		return mapUploadError(c, h.logger, err)
	}

	comment, err := h.comments.Add(ctx, actor, id, payload, imageURLs)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrLessonNotFound):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "discussion not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment added", comment)
}

func (h *ForumHandler) listComments(c *fiber.Ctx) error {
	courseID, err := parseQueryInt(c, "course_id")
	if err != nil || courseID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "valid course_id required")
	}

	ctx := withRequestContext(c)

	comments, err := h.comments.ListByCourse(ctx, actorFromContext(c), uint(courseID))
	if err != nil {
		if errors.Is(err, service.ErrCourseNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "comments", comments)
}

func (h *ForumHandler) editComment(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CommentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	comment, err := h.comments.Edit(ctx, actorFromContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommentForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "comment not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "comment updated", comment)
}

func (h *ForumHandler) deleteComment(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	if err := h.comments.Delete(ctx, actorFromContext(c), id); err != nil {
		switch {
		case errors.Is(err, service.ErrCommentForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "comment not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "comment deleted", nil)
}

func (h *ForumHandler) blockComment(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.BlockRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	comment, err := h.comments.SetBlocked(ctx, id, *payload.Blocked)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "comment not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "comment block flag updated", comment)
}

func (h *ForumHandler) lessonRefs(c *fiber.Ctx) error {
	courseID, err := parseUintParamValue(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	refs, err := h.courses.LessonRefs(ctx, courseID)
	if err != nil {
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "lessons", refs)
}

// storeCommentImages uploads every image attached under the multipart
// "images" field, returning their public URLs. JSON requests have no
// multipart form and simply return nil.
func (h *ForumHandler) storeCommentImages(c *fiber.Ctx) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil, nil
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil, nil
	}

	actorID := userIDFromContext(c)
	ctx := withRequestContext(c)

	urls := make([]string, 0, len(files))
	for _, file := range files {
		upload, err := h.uploads.Upload(ctx, file, &actorID)
		if err != nil {
			return nil, err
		}
		urls = append(urls, upload.URL)
	}
	return urls, nil
}
