package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noam-katz/lomda-api/internal/config"
	"github.com/noam-katz/lomda-api/internal/handler"
	"github.com/noam-katz/lomda-api/internal/middleware"
	"github.com/noam-katz/lomda-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	CourseHandler *handler.CourseHandler
	ForumHandler  *handler.ForumHandler
	ChatHandler   *handler.ChatHandler
	AdminHandler  *handler.AdminHandler
	JWTMiddleware fiber.Handler
	OptionalJWT   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	if cfg.UploadBackend == config.UploadBackendLocal {
		app.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	optionalJWT := deps.OptionalJWT
	if optionalJWT == nil {
		optionalJWT = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		// Credential endpoints are the brute-force target, so they get a
		// tighter per-IP budget than the rest of the API.
		deps.AuthHandler.Register(api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute)))
	}

	if deps.UserHandler != nil {
		users := api.Group("/users", jwtMiddleware)
		deps.UserHandler.Register(users)
	}

	// Catalogue and forum reads stay open to anonymous visitors. The optional
	// JWT still binds identity when a token is present so signed-in viewers
	// (admins in particular) see unmasked content; per-route guards inside the
	// handlers enforce the write and moderation requirements.
	if deps.CourseHandler != nil {
		courses := api.Group("/courses", optionalJWT)
		deps.CourseHandler.Register(courses)
	}

	if deps.ForumHandler != nil || deps.ChatHandler != nil {
		forum := api.Group("/forum", optionalJWT)

		if deps.ForumHandler != nil {
			deps.ForumHandler.Register(forum)
		}

		if deps.ChatHandler != nil {
			deps.ChatHandler.Register(forum)
		}
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", jwtMiddleware, middleware.RequireAdmin())
		deps.AdminHandler.Register(admin)
	}
}
