package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderCorrelationID is the request/response header carrying the correlation id.
const HeaderCorrelationID = "X-Correlation-ID"

// LocalCorrelationID is the fiber locals key the response helpers read when
// rendering opaque errors.
const LocalCorrelationID = "correlation_id"

type correlationContextKey struct{}

// CorrelationID tags every request with a correlation identifier. Incoming
// ids are honored so log lines can be joined across services; otherwise a
// fresh uuid is generated. The id is echoed back in the response header and
// is the only request detail an opaque 500 exposes.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderCorrelationID))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(LocalCorrelationID, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(context.WithValue(c.Context(), correlationContextKey{}, id))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation identifier bound to the request,
// falling back to the request context for websocket-upgraded handlers.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalCorrelationID).(string); ok && id != "" {
		return id
	}
	return CorrelationIDFromContext(c.Context())
}

// CorrelationIDFromContext extracts the correlation identifier from a
// context previously built by CorrelationID or ContextWithCorrelation.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}

// ContextWithCorrelation attaches the correlation identifier to ctx so it
// survives hand-off to services and background goroutines.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationContextKey{}, correlationID)
}
