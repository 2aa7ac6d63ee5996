package repositories

import (
	"context"
	"errors"
	"fmt"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parable/backend/internal/db"
	"github.com/parable/backend/internal/models"
)

// PostgresEngagementRepository toggles likes and bookmarks and appends
// comments, all keyed by (post_id, user_id).
type PostgresEngagementRepository struct {
	pool db.Pool
}

// NewPostgresEngagementRepository constructs an engagement repository backed by PostgreSQL.
func NewPostgresEngagementRepository(pool db.Pool) *PostgresEngagementRepository {
	return &PostgresEngagementRepository{pool: pool}
}

// ToggleLike flips membership of (postID, userID) in the likes table. The
// read and the compensating write run in one retried transaction so two
// rapid toggles cannot both observe the same prior state.
func (r *PostgresEngagementRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "likes", postID, userID)
}

// ToggleBookmark flips membership of (postID, userID) in the bookmarks table.
func (r *PostgresEngagementRepository) ToggleBookmark(ctx context.Context, postID, userID string) (bool, error) {
	return r.toggle(ctx, "bookmarks", postID, userID)
}

func (r *PostgresEngagementRepository) toggle(ctx context.Context, table, postID, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var member bool
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            SELECT EXISTS (SELECT 1 FROM %s WHERE post_id = $1 AND user_id = $2)
        `, table), postID, userID)

		var exists bool
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check %s membership: %w", table, err)
		}

		if exists {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`
                DELETE FROM %s WHERE post_id = $1 AND user_id = $2
            `, table), postID, userID); err != nil {
				return fmt.Errorf("delete %s row: %w", table, err)
			}
			member = false
			return nil
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf(`
            INSERT INTO %s (post_id, user_id, created_at) VALUES ($1, $2, NOW())
        `, table), postID, userID); err != nil {
			return fmt.Errorf("insert %s row: %w", table, err)
		}
		member = true
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrNotFound
		}
		return false, err
	}

	return member, nil
}

// AddComment appends a comment row. Comments are never toggled.
func (r *PostgresEngagementRepository) AddComment(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, post_id, user_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, comment.ID, comment.PostID, comment.UserID, comment.Content, comment.CreatedAt)
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
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// ListComments returns a post's comments in chronological order.
func (r *PostgresEngagementRepository) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
               COALESCE(pr.username, u.username, '') AS author_name
        FROM comments c
        JOIN users u ON u.id = c.user_id
        LEFT JOIN profiles pr ON pr.user_id = c.user_id
        WHERE c.post_id = $1
        ORDER BY c.created_at ASC, c.id ASC
    `, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// Counts aggregates a post's like and comment totals at read time.
func (r *PostgresEngagementRepository) Counts(ctx context.Context, postID string) (int, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT (SELECT COUNT(*) FROM likes WHERE post_id = $1),
               (SELECT COUNT(*) FROM comments WHERE post_id = $1)
    `, postID)

	var likes, comments int
	if err := row.Scan(&likes, &comments); err != nil {
		return 0, 0, fmt.Errorf("count engagement: %w", err)
	}

	return likes, comments, nil
}

// PostgresFollowRepository records follower → followee relationships.
type PostgresFollowRepository struct {
	pool db.Pool
}

// NewPostgresFollowRepository constructs a follow repository backed by PostgreSQL.
func NewPostgresFollowRepository(pool db.Pool) *PostgresFollowRepository {
	return &PostgresFollowRepository{pool: pool}
}

// Toggle flips the follower → followee relationship.
func (r *PostgresFollowRepository) Toggle(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, ErrConflict
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var following bool
	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)
        `, followerID, followeeID)

		var exists bool
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check follow membership: %w", err)
		}

		if exists {
			if _, err := tx.Exec(ctx, `
                DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2
            `, followerID, followeeID); err != nil {
				return fmt.Errorf("delete follow row: %w", err)
			}
			following = false
			return nil
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, NOW())
        `, followerID, followeeID); err != nil {
			return fmt.Errorf("insert follow row: %w", err)
		}
		following = true
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrNotFound
		}
		return false, err
	}

	return following, nil
}

// ListFollowees returns the ids of every user the provided user follows.
func (r *PostgresFollowRepository) ListFollowees(ctx context.Context, followerID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT followee_id FROM follows WHERE follower_id = $1
    `, followerID)
	if err != nil {
		return nil, fmt.Errorf("query followees: %w", err)
	}
	defer rows.Close()

	var followees []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan followee: %w", err)
		}
		followees = append(followees, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followees: %w", err)
	}

	return followees, nil
}

// Counts returns the follower and following totals for a user.
func (r *PostgresFollowRepository) Counts(ctx context.Context, userID string) (int, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT (SELECT COUNT(*) FROM follows WHERE followee_id = $1),
               (SELECT COUNT(*) FROM follows WHERE follower_id = $1)
    `, userID)

	var followers, following int
	if err := row.Scan(&followers, &following); err != nil {
		return 0, 0, fmt.Errorf("count follows: %w", err)
	}

	return followers, following, nil
}

// Trending returns the creators with the most followers.
func (r *PostgresFollowRepository) Trending(ctx context.Context, limit int) ([]models.Creator, error) {
	if limit <= 0 {
		limit = 5
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
        ORDER BY followers DESC, p.username ASC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending creators: %w", err)
	}
	defer rows.Close()

	return collectCreators(rows)
}

var _ EngagementRepository = (*PostgresEngagementRepository)(nil)
var _ FollowRepository = (*PostgresFollowRepository)(nil)
