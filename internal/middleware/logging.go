// Package middleware provides the HTTP middleware stack for the Reelbase
// API: request logging, rate limiting, panic recovery, CORS, security
// headers, and trusted proxy resolution. See internal/app for registration.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger returns middleware that emits one structured slog record per
// request: method, path, status, latency, and the resolved client IP. Health
// probes are skipped to keep uptime checks out of the logs.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.Path == "/api/health" {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			res := c.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			}
			if req.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", req.URL.RawQuery))
			}
			if err != nil {
				// The error handler runs after middleware, so the handler
				// error is attached here while it is still in scope.
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			level := slog.LevelInfo
			switch {
			case res.Status >= 500:
				level = slog.LevelError
			case res.Status >= 400:
				level = slog.LevelWarn
			}

			slog.LogAttrs(req.Context(), level, "request", attrs...)

			return err
		}
	}
}
