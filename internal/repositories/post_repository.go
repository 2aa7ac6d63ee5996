package repositories

import (
	"context"
	"time"

	"github.com/parable/backend/internal/models"
)

// FeedQuery scopes a paginated feed read. A zero CursorTime means "first
// page". When Authors is non-empty the feed is restricted to those owners.
type FeedQuery struct {
	Authors    []string
	Limit      int
	CursorTime time.Time
	CursorID   string
}

// PostRepository exposes data access for the media feed.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	Find(ctx context.Context, id string) (models.Post, error)
	ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error)
}
