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

// AdminHandler provides user-administration endpoints.
type AdminHandler struct {
	users     service.UserService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminHandler constructs a handler instance.
func NewAdminHandler(users service.UserService, validator *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		users:     users,
		validator: validator,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds the admin routes. The router guards the group with the admin
// role middleware.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/users", h.listUsers)
	router.Put("/users/:id/block", h.blockUser)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	var query dto.AdminUserListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Struct(query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	users, err := h.users.List(ctx, query.Skip, query.Limit)
	if err != nil {
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "users", users)
}

func (h *AdminHandler) blockUser(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UserBlockRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	user, err := h.users.SetBlocked(ctx, id, *payload.Blocked)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user block flag updated", user)
}
