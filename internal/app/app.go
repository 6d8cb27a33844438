// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, optional Redis
// client, Echo instance) and wires the plugins together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tjmcgrath/reelbase/internal/apperror"
	"github.com/tjmcgrath/reelbase/internal/config"
	"github.com/tjmcgrath/reelbase/internal/middleware"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MySQL connection pool shared by all plugins.
	DB *sql.DB

	// Redis is the optional shared store for lockout counters and the
	// response cache. Nil when running single-process with in-memory stores.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. The per-IP rate limiter on the
	// credential endpoints depends on this.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- the SPA frontend is served from a different origin and sends
	// the auth cookies along, so credentials must be allowed.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   a.Config.AllowedOrigins,
		AllowCredentials: true,
	}))
}

// Start begins listening on the configured port. Blocks until the server
// stops; returns http.ErrServerClosed after a graceful shutdown.
func (a *App) Start() error {
	return a.Echo.Start(fmt.Sprintf(":%d", a.Config.Port))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to JSON responses. Validation errors carry the full list of
// violations; throttle errors carry the remaining cooldown.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	body := map[string]any{"message": "An unexpected error occurred"}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		body["message"] = appErr.Message
		body["error"] = appErr.Type
		if len(appErr.Errors) > 0 {
			body["errors"] = appErr.Errors
		}
		if appErr.CooldownSeconds > 0 {
			body["cooldownSeconds"] = appErr.CooldownSeconds
		}

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Echo's built-in HTTP errors (e.g., 404 from the router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			body["error"] = http.StatusText(code)
			if msg, ok := echoErr.Message.(string); ok {
				body["message"] = msg
			} else {
				body["message"] = http.StatusText(code)
			}
		} else {
			// Truly unexpected error -- log it, return a generic 500.
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
			body["error"] = http.StatusText(code)
		}
	}

	if err := c.JSON(code, body); err != nil {
		slog.Error("writing error response failed", slog.Any("error", err))
	}
}
