package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facility-requests/internal/api/http/handlers"
	"github.com/spec-kit/facility-requests/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Requests       *handlers.RequestsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	authGroup := app.Group("/auth")
	authGroup.Post("/signin", cfg.Auth.SignIn)
	authGroup.Post("/signout", cfg.AuthMiddleware.Handle, cfg.Auth.SignOut)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireIdentity(), cfg.Auth.Me)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireIdentity())
	requests.Post("/", cfg.Requests.CreateRequest)
	requests.Get("/", cfg.Requests.ListRequests)
	requests.Get("/stats", cfg.Requests.Stats)
	requests.Get("/:id", cfg.Requests.GetRequest)
	requests.Patch("/:id", auth.RequireAdmin(), cfg.Requests.UpdateStatus)
	requests.Post("/:id/respond", auth.RequireAdmin(), cfg.Requests.Respond)
}
