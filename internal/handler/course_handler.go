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

// CourseHandler provides catalogue, authoring and enrollment endpoints.
type CourseHandler struct {
	service   service.CourseService
	uploads   service.UploadService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCourseHandler constructs a handler instance.
func NewCourseHandler(service service.CourseService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service:   service,
		uploads:   uploads,
		validator: validator,
		logger:    logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register binds the course routes. Catalogue reads are public; everything
// that mutates or is tied to an account carries a per-route auth guard.
func (h *CourseHandler) Register(router fiber.Router) {
	user := middleware.AuthOptions{Role: middleware.AuthRoleUser}

	router.Get("/", h.list)
	router.Get("/categories", h.categories)
	// Bound before the "/:id" route so "enrolled" is never read as an id.
	router.Get("/enrolled", middleware.WithAuth(h.enrolledCourses, user))
	router.Get("/:id", h.get)

	router.Post("/", middleware.WithAuth(h.create, user))
	router.Put("/:id", middleware.WithAuth(h.update, user))
	router.Put("/:id/deactivate", middleware.WithAuth(h.deactivate, user))
	router.Post("/:id/enroll", middleware.WithAuth(h.enroll, user))
	router.Get("/:id/enrollment-status", middleware.WithAuth(h.enrollmentStatus, user))
	router.Post("/:id/lessons/:lessonId/progress", middleware.WithAuth(h.saveProgress, user))
	router.Post("/upload-image", middleware.WithAuth(h.uploadAsset, user))
	router.Post("/upload-video", middleware.WithAuth(h.uploadAsset, user))
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	var query dto.CourseListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	ctx := withRequestContext(c)

	courses, err := h.service.List(ctx, query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "courses", courses)
}

func (h *CourseHandler) categories(c *fiber.Ctx) error {
	ctx := withRequestContext(c)

	categories, err := h.service.Categories(ctx)
	if err != nil {
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "categories", categories)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	course, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "course not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	course, err := h.service.Create(ctx, actorFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	course, err := h.service.Update(ctx, id, actorFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCourseForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "course not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	if err := h.service.Deactivate(ctx, id, actorFromContext(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrCourseForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "course not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "course deactivated", nil)
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	if err := h.service.Enroll(ctx, id, actorFromContext(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyEnrolled):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "course not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "enrolled", nil)
}

func (h *CourseHandler) enrollmentStatus(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	status, err := h.service.EnrollmentStatus(ctx, id, actorFromContext(c))
	if err != nil {
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrollment status", status)
}

func (h *CourseHandler) enrolledCourses(c *fiber.Ctx) error {
	ctx := withRequestContext(c)

	courses, err := h.service.EnrolledCourses(ctx, actorFromContext(c))
	if err != nil {
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "enrolled courses", courses)
}

func (h *CourseHandler) saveProgress(c *fiber.Ctx) error {
	courseID, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	lessonID, err := parseUintParamValue(c, "lessonId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	if err := h.service.SaveLessonProgress(ctx, courseID, lessonID, actorFromContext(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrLessonCourseMismatch):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "lesson not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "progress saved", nil)
}

func (h *CourseHandler) uploadAsset(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	actor := actorFromContext(c)
	ctx := withRequestContext(c)

	upload, err := h.uploads.Upload(ctx, file, &actor.ID)
	if err != nil {
		return mapUploadError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", upload)
}
