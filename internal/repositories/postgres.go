package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parable/backend/internal/db"
	"github.com/parable/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, username, full_name, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, user.ID, user.Email, user.Password, user.Username, user.FullName, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, username, full_name, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	return scanUser(row, "select user by email")
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, username, full_name, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	return scanUser(row, "select user by id")
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, password_hash = $3, username = $4, full_name = $5, updated_at = $6
        WHERE id = $1
    `, user.ID, user.Email, user.Password, user.Username, user.FullName, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Username, &user.FullName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Upsert creates or replaces the profile row for its user. Sign-up relies on
// upsert semantics so a retried attempt never conflicts with itself.
func (r *PostgresProfileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (user_id, username, full_name, avatar_url, bio, role, onboarding_complete, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id)
        DO UPDATE SET username = EXCLUDED.username,
                      full_name = EXCLUDED.full_name,
                      avatar_url = EXCLUDED.avatar_url,
                      bio = EXCLUDED.bio,
                      role = EXCLUDED.role,
                      onboarding_complete = EXCLUDED.onboarding_complete,
                      updated_at = EXCLUDED.updated_at
    `, profile.UserID, profile.Username, profile.FullName, profile.AvatarURL, profile.Bio, profile.Role, profile.OnboardingComplete, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// Find fetches the profile owned by the provided user id.
func (r *PostgresProfileRepository) Find(ctx context.Context, userID string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_id, username, full_name, avatar_url, bio, role, onboarding_complete, updated_at
        FROM profiles
        WHERE user_id = $1
    `, userID)

	var profile models.Profile
	if err := row.Scan(&profile.UserID, &profile.Username, &profile.FullName, &profile.AvatarURL, &profile.Bio, &profile.Role, &profile.OnboardingComplete, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

// Search returns creators whose username starts with the provided prefix.
func (r *PostgresProfileRepository) Search(ctx context.Context, usernamePrefix string, limit int) ([]models.Creator, error) {
	if limit <= 0 {
		limit = 10
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT p.user_id, p.username, p.full_name, p.avatar_url,
               (SELECT COUNT(*) FROM follows f WHERE f.followee_id = p.user_id) AS followers
        FROM profiles p
        WHERE p.username LIKE $1 || '%' ESCAPE '\'
        ORDER BY p.username
        LIMIT $2
    `, escapeLikePrefix(usernamePrefix), limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	return collectCreators(rows)
}

// escapeLikePrefix neutralizes LIKE metacharacters so a user-supplied prefix
// matches literally instead of acting as a wildcard.
func escapeLikePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix)
}

func collectCreators(rows pgx.Rows) ([]models.Creator, error) {
	var creators []models.Creator
	for rows.Next() {
		var c models.Creator
		if err := rows.Scan(&c.UserID, &c.Username, &c.FullName, &c.AvatarURL, &c.Followers); err != nil {
			return nil, fmt.Errorf("scan creator: %w", err)
		}
		creators = append(creators, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creators: %w", err)
	}

	return creators, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ ProfileRepository = (*PostgresProfileRepository)(nil)
