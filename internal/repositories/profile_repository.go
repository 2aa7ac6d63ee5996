package repositories

import (
	"context"

	"github.com/parable/backend/internal/models"
)

// ProfileRepository defines data access for public identity records.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile models.Profile) error
	Find(ctx context.Context, userID string) (models.Profile, error)
	Search(ctx context.Context, usernamePrefix string, limit int) ([]models.Creator, error)
}
