package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/auth-service/internal/api/http/handlers"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
)

// NewApp builds the fiber app. When a proxy header is configured c.IP()
// reads the client address from it, and only from TrustedProxies if any
// are listed.
func NewApp(cfg config.AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:                 cfg.Name,
		DisableStartupMessage:   true,
		ProxyHeader:             cfg.ProxyHeader,
		EnableTrustedProxyCheck: len(cfg.TrustedProxies) > 0,
		TrustedProxies:          cfg.TrustedProxies,
	})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Users   *handlers.UserHandler
	Admin   *handlers.AdminHandler
	Guards  auth.Guards
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/analytics", cfg.Guards.Admin.Handle, cfg.Admin.Analytics)

	userGroup := api.Group("/user")
	userGroup.Get("/profile", cfg.Guards.Authenticated.Wrap(cfg.Users.Profile))
	userGroup.Post("/change-password", cfg.Guards.Authenticated.Wrap(cfg.Users.ChangePassword))

	adminGroup := api.Group("/admin", cfg.Guards.Admin.Handle)
	adminGroup.Post("/create", cfg.Admin.CreateAdmin)
	adminGroup.Get("/users", cfg.Admin.ListUsers)
}
