package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/parable/backend/internal/auth"
	"github.com/parable/backend/internal/config"
	"github.com/parable/backend/internal/db"
	"github.com/parable/backend/internal/feed"
	"github.com/parable/backend/internal/handlers"
	"github.com/parable/backend/internal/identity"
	"github.com/parable/backend/internal/live"
	"github.com/parable/backend/internal/media"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/repositories"
	"github.com/parable/backend/internal/storage"
)

const (
	loginCodeTTL     = 10 * time.Minute
	identityCacheTTL = 5 * time.Minute

	authRateRequests = 30
	authRateWindow   = time.Minute
	authRateBurst    = 10
	authRateTTL      = 10 * time.Minute
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup stops background workers and should run
// after the HTTP server has drained.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	profiles := repositories.NewPostgresProfileRepository(pool)
	posts := repositories.NewPostgresPostRepository(pool)
	engagement := repositories.NewPostgresEngagementRepository(pool)
	follows := repositories.NewPostgresFollowRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	sessions := auth.NewManager(cfg.SessionAccessTTL, cfg.SessionRefreshTTL, sessionStore)
	codes := auth.NewCodeBroker(loginCodeTTL)

	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	sweeper := media.NewSweeper(store, media.SweeperConfig{}, slog.Default())

	resolver := identity.NewResolver(profiles, users, store)
	caching := identity.NewCachingResolver(resolver, identityCacheTTL)

	minter := live.NewTokenMinter(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, live.DefaultTokenTTL)

	deps := handlers.Dependencies{
		Users:       users,
		Profiles:    profiles,
		Sessions:    sessions,
		Codes:       codes,
		Posts:       posts,
		Engagement:  engagement,
		Follows:     follows,
		Storage:     store,
		Sweeper:     sweeper,
		Identity:    caching,
		Invalidator: caching,
		Minter:      minter,
		Notifier:    feed.NewBus(),
		Limiter:     middleware.NewIPRateLimiter(authRateRequests, authRateWindow, authRateBurst, authRateTTL),
		LiveURL:     cfg.LiveKit.URL,
	}

	cleanup := func(shutdownCtx context.Context) error {
		return sweeper.Shutdown(shutdownCtx)
	}

	return deps, cleanup, nil
}
