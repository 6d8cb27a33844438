package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tjmcgrath/reelbase/internal/plugins/auth"
	"github.com/tjmcgrath/reelbase/internal/plugins/movies"
)

// RegisterRoutes sets up all application routes. It constructs each
// plugin's repository/service/handler stack and delegates to the plugin's
// route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for Docker/orchestrator monitoring.
	e.GET("/api/health", func(c echo.Context) error {
		if err := a.DB.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- auth plugin ---
	userRepo := auth.NewUserRepository(a.DB)
	tokens := auth.NewTokenManager(a.Config.Auth)

	// Lockout counters move to Redis when it is configured so all
	// replicas see the same failure history.
	var lockout auth.LockoutStore
	if a.Redis != nil {
		lockout = auth.NewRedisLockoutStore(a.Redis, a.Config.Auth)
	} else {
		lockout = auth.NewMemoryLockoutStore(a.Config.Auth)
	}

	authService := auth.NewAuthService(userRepo, tokens, lockout)
	requireAuth := auth.RequireAuth(authService)
	auth.RegisterRoutes(e, auth.NewHandler(authService, a.Config), requireAuth)

	// --- movies plugin ---
	omdbClient := movies.NewOMDbClient(a.Config.OMDb)

	var responseCache movies.ResponseCache
	if a.Redis != nil {
		responseCache = movies.NewRedisResponseCache(a.Redis, a.Config.OMDb.CacheTTL)
	} else {
		responseCache = movies.NewMemoryResponseCache(a.Config.OMDb.CacheTTL)
	}

	movieService := movies.NewMovieService(omdbClient, responseCache)
	movies.RegisterRoutes(e, movies.NewHandler(movieService), requireAuth)
}
