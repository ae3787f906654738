package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/service"
	"github.com/noam-katz/lomda-api/internal/utils"
)

// UserHandler provides profile endpoints.
type UserHandler struct {
	service   service.UserService
	uploads   service.UploadService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserHandler constructs a handler instance.
func NewUserHandler(service service.UserService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service:   service,
		uploads:   uploads,
		validator: validator,
		logger:    logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds the user routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Put("/:id", h.updateProfile)
	router.Post("/:id/profile-picture", h.uploadProfilePicture)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	ctx := withRequestContext(c)

	user, err := h.service.UpdateProfile(ctx, id, actorFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileForbidden):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccess(c, "profile updated", user)
}

func (h *UserHandler) uploadProfilePicture(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	if actor.ID != id {
		return utils.SendError(c, fiber.StatusForbidden, "cannot modify another user's profile")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	ctx := withRequestContext(c)

	upload, err := h.uploads.Upload(ctx, file, &actor.ID)
	if err != nil {
		return mapUploadError(c, h.logger, err)
	}

	user, err := h.service.SetProfilePicture(ctx, id, actor, upload.URL)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile picture updated", user)
}

func mapUploadError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrUploadScanFailed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return internalError(c, logger, err)
	}
}
