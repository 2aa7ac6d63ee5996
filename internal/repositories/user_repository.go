package repositories

import (
	"context"

	"github.com/parable/backend/internal/models"
)

// UserRepository defines the data access contract for authentication records.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}
