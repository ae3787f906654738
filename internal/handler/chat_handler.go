package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/middleware"
	"github.com/noam-katz/lomda-api/internal/service"
	"github.com/noam-katz/lomda-api/internal/utils"
)

// ChatHandler wires the discussion chat endpoints including the websocket
// upgrade used for push delivery.
type ChatHandler struct {
	service   service.ChatService
	uploads   service.UploadService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, uploads service.UploadService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		uploads:   uploads,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds the chat routes under /discussions/:id plus the websocket
// upgrade under /chat/ws.
func (h *ChatHandler) Register(router fiber.Router) {
	user := middleware.AuthOptions{Role: middleware.AuthRoleUser}

	router.Post("/discussions/:id/messages", middleware.WithAuth(h.postMessage, user))
	router.Get("/discussions/:id/messages", middleware.WithAuth(h.listMessages, user))
	router.Get("/discussions/:id/users", middleware.WithAuth(h.listParticipants, user))

	router.Use("/chat/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/chat/ws", websocket.New(h.handleConnection))
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	actor := websocketActor(conn)
	if actor.ID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	discussionID, err := strconv.ParseUint(strings.TrimSpace(conn.Query("discussion")), 10, 32)
	if err != nil || discussionID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "discussion required"))
		_ = conn.Close()
		return
	}

	correlation := fmt.Sprint(conn.Locals(middleware.LocalCorrelationID))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ChatConnectionOptions{
		Actor:         actor,
		DiscussionID:  uint(discussionID),
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", actor.ID).Uint64("discussion_id", discussionID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", actor.ID).Uint64("discussion_id", discussionID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) postMessage(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessagePostRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := actorFromContext(c)
	ctx := withRequestContext(c)

	imageURL := ""
	if file, err := c.FormFile("image"); err == nil && file != nil {
		upload, err := h.uploads.Upload(ctx, file, &actor.ID)
		if err != nil {
			return mapUploadError(c, h.logger, err)
		}
		imageURL = upload.URL
	}

	message, err := h.service.PostMessage(ctx, actor, id, payload, imageURL)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrMessageEmpty):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDiscussionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		default:
			return internalError(c, h.logger, err)
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	messages, err := h.service.History(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrDiscussionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *ChatHandler) listParticipants(c *fiber.Ctx) error {
	id, err := parseUintParamValue(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)

	participants, err := h.service.Participants(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrDiscussionNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		return internalError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "participants", participants)
}

func websocketActor(conn *websocket.Conn) service.Actor {
	actor := service.Actor{}

	if value := conn.Locals(middleware.LocalUserID); value != nil {
		switch v := value.(type) {
		case uint:
			actor.ID = v
		case int:
			if v > 0 {
				actor.ID = uint(v)
			}
		case float64:
			if v > 0 {
				actor.ID = uint(v)
			}
		}
	}
	if value, ok := conn.Locals(middleware.LocalUserName).(string); ok {
		actor.Name = value
	}
	if value, ok := conn.Locals(middleware.LocalUserEmail).(string); ok {
		actor.Email = value
	}
	if value, ok := conn.Locals(middleware.LocalUserRole).(string); ok {
		actor.Role = value
	}

	return actor
}
