package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noam-katz/lomda-api/internal/middleware"
	"github.com/noam-katz/lomda-api/internal/utils"
)

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// withIdentity fakes the JWT middleware by binding the identity locals
// directly, so handler tests run without issuing real tokens. Like the
// optional JWT, it binds nothing for an anonymous caller (zero id).
func withIdentity(id uint, name, email, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id != 0 {
			c.Locals(middleware.LocalUserID, id)
			c.Locals(middleware.LocalUserName, name)
			c.Locals(middleware.LocalUserEmail, email)
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()

	var body *bytes.Reader
	if payload == nil {
		body = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target *utils.APIResponse) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	require.NoError(t, resp.Body.Close())
}

// dataMap re-decodes the envelope's data field into a map for field-level
// assertions without mirroring every DTO in the tests.
func dataMap(t *testing.T, data interface{}) map[string]interface{} {
	t.Helper()
	out, ok := data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", data)
	return out
}
