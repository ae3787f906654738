package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/handler"
	"github.com/noam-katz/lomda-api/internal/service"
	"github.com/noam-katz/lomda-api/internal/utils"
)

func newUserTestApp(users service.UserService, uploads service.UploadService, actor service.Actor) *fiber.App {
	app := fiber.New()
	h := handler.NewUserHandler(users, uploads, testValidator(), zerolog.Nop())
	h.Register(app.Group("/api/users", withIdentity(actor.ID, actor.Name, actor.Email, actor.Role)))
	return app
}

func TestUserHandlerUpdateProfile(t *testing.T) {
	svc := &mockUserService{user: dto.UserResponse{ID: 4, Name: "Dana Levi"}}
	app := newUserTestApp(svc, &mockUploadService{}, service.Actor{ID: 4, Role: "user"})

	name := "Dana Levi"
	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/api/users/4", dto.ProfileUpdateRequest{Name: &name}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope utils.APIResponse
	decodeResponse(t, resp, &envelope)
	require.Equal(t, "profile updated", envelope.Message)
	require.Equal(t, "Dana Levi", dataMap(t, envelope.Data)["name"])
}

func TestUserHandlerUpdateProfileForbiddenForOthers(t *testing.T) {
	svc := &mockUserService{err: service.ErrProfileForbidden}
	app := newUserTestApp(svc, &mockUploadService{}, service.Actor{ID: 9, Role: "user"})

	name := "Imposter"
	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/api/users/4", dto.ProfileUpdateRequest{Name: &name}))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUserHandlerProfilePictureRejectsOtherUsers(t *testing.T) {
	svc := &mockUserService{}
	uploads := &mockUploadService{}
	app := newUserTestApp(svc, uploads, service.Actor{ID: 9, Role: "user"})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/users/4/profile-picture", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Zero(t, uploads.calls)
}
