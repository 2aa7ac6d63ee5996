package repositories

import (
	"context"

	"github.com/parable/backend/internal/models"
)

// EngagementRepository toggles and reads the join rows backing likes,
// bookmarks, and comments.
type EngagementRepository interface {
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, err error)
	ToggleBookmark(ctx context.Context, postID, userID string) (saved bool, err error)
	AddComment(ctx context.Context, comment models.Comment) error
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	Counts(ctx context.Context, postID string) (likes, comments int, err error)
}

// FollowRepository records follower → followee relationships.
type FollowRepository interface {
	Toggle(ctx context.Context, followerID, followeeID string) (following bool, err error)
	ListFollowees(ctx context.Context, followerID string) ([]string, error)
	Counts(ctx context.Context, userID string) (followers, following int, err error)
	Trending(ctx context.Context, limit int) ([]models.Creator, error)
}
