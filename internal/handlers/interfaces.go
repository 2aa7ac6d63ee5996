package handlers

import (
	"context"
	"io"

	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// ProfileStore persists and queries public profiles.
type ProfileStore interface {
	Upsert(ctx context.Context, profile models.Profile) error
	Find(ctx context.Context, userID string) (models.Profile, error)
	Search(ctx context.Context, usernamePrefix string, limit int) ([]models.Creator, error)
}

// SessionManager issues, validates, refreshes, and revokes session tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Validate(ctx context.Context, accessToken string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// CodeBroker mints and redeems one-time sign-up verification codes.
type CodeBroker interface {
	Issue(ctx context.Context, userID string) (string, error)
	Exchange(ctx context.Context, code string) (string, error)
}

// PostStore persists posts and serves feed pages.
type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	Find(ctx context.Context, id string) (models.Post, error)
	ListFeed(ctx context.Context, q repositories.FeedQuery) ([]models.Post, error)
}

// EngagementStore captures like, bookmark, and comment persistence.
type EngagementStore interface {
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	ToggleBookmark(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, comment models.Comment) error
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	Counts(ctx context.Context, postID string) (likes, comments int, err error)
}

// FollowStore captures follow-relationship persistence.
type FollowStore interface {
	Toggle(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowees(ctx context.Context, followerID string) ([]string, error)
	Counts(ctx context.Context, userID string) (followers, following int, err error)
	Trending(ctx context.Context, limit int) ([]models.Creator, error)
}

// MediaStorage stores and removes uploaded media objects.
type MediaStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
}

// OrphanSweeper schedules background deletion of objects whose database row
// never landed.
type OrphanSweeper interface {
	Enqueue(ctx context.Context, key string) error
}

// IdentityResolver derives the display identity for a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) models.Identity
}

// IdentityInvalidator drops a cached identity after a profile change.
type IdentityInvalidator interface {
	Invalidate(userID string)
}

// RoomTokenMinter signs media-server room access tokens.
type RoomTokenMinter interface {
	Configured() bool
	Mint(identity, name, room string) (string, error)
}

// FeedNotifier fans freshly created posts out to live feed subscribers.
type FeedNotifier interface {
	Subscribe() (<-chan models.Post, func())
	Publish(post models.Post)
}
