package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/service"
)

// envelopeSchema is the wire contract every endpoint answers with. Clients
// key off success and message, so those are mandatory; everything else is
// payload-specific.
const envelopeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["success", "message"],
	"properties": {
		"success": {"type": "boolean"},
		"message": {"type": "string", "minLength": 1},
		"data": {},
		"details": {},
		"correlation_id": {"type": "string"}
	},
	"additionalProperties": false
}`

func TestResponseEnvelopeContract(t *testing.T) {
	schema, err := jsonschema.CompileString("envelope.json", envelopeSchema)
	require.NoError(t, err)

	validate := func(t *testing.T, resp *http.Response) {
		t.Helper()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var decoded interface{}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		require.NoError(t, schema.Validate(decoded), "body violates envelope contract: %s", raw)
	}

	t.Run("success response", func(t *testing.T) {
		svc := &mockCourseService{courses: []dto.CourseResponse{{ID: 1, Title: "Go Basics"}}}
		app := newCourseTestApp(svc, &mockUploadService{}, service.Actor{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/courses", nil))
		require.NoError(t, err)
		validate(t, resp)
	})

	t.Run("client error response", func(t *testing.T) {
		fixture := newForumTestApp(service.Actor{ID: 1, Role: "admin"})

		resp, err := fixture.app.Test(jsonRequest(t, http.MethodPut, "/api/forum/discussions/1/block", map[string]interface{}{}))
		require.NoError(t, err)
		validate(t, resp)
	})

	t.Run("opaque server error response", func(t *testing.T) {
		svc := &mockAuthService{
			loginFn: func(dto.LoginRequest) (dto.LoginResponse, error) {
				return dto.LoginResponse{}, io.ErrUnexpectedEOF
			},
		}
		app := newAuthTestApp(svc)

		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/auth/login", dto.LoginRequest{
			Email:    "dana@example.com",
			Password: "secret1",
		}))
		require.NoError(t, err)
		validate(t, resp)
	})
}
