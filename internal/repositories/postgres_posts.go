package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parable/backend/internal/db"
	"github.com/parable/backend/internal/models"
)

// DefaultFeedPageSize is used when a feed query does not set a limit.
const DefaultFeedPageSize = 20

// MaxFeedPageSize caps how many posts a single page may return.
const MaxFeedPageSize = 100

// PostgresPostRepository provides PostgreSQL-backed persistence for posts.
type PostgresPostRepository struct {
	pool db.Pool
}

// NewPostgresPostRepository constructs a post repository backed by PostgreSQL.
func NewPostgresPostRepository(pool db.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

// Create stores a new post record.
func (r *PostgresPostRepository) Create(ctx context.Context, post models.Post) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO posts (id, owner_id, media_url, caption, filter, post_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, post.ID, post.OwnerID, post.MediaURL, post.Caption, post.Filter, post.PostType, post.CreatedAt)
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
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

const postProjection = `
        SELECT p.id, p.owner_id, p.media_url, p.caption, p.filter, p.post_type, p.created_at,
               COALESCE(pr.username, u.username, '') AS author_name,
               COALESCE(pr.avatar_url, '') AS author_avatar,
               (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS likes_count,
               (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments_count
        FROM posts p
        JOIN users u ON u.id = p.owner_id
        LEFT JOIN profiles pr ON pr.user_id = p.owner_id`

// Find fetches a single post with its read-time aggregates.
func (r *PostgresPostRepository) Find(ctx context.Context, id string) (models.Post, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Post{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, postProjection+`
        WHERE p.id = $1
    `, id)

	var post models.Post
	if err := scanPost(row, &post); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("select post: %w", err)
	}

	return post, nil
}

// ListFeed returns one reverse-chronological page of posts. Ordering is
// strict (created_at DESC, id DESC) so a (created_at, id) cursor partitions
// the feed without duplicates even when timestamps collide. Engagement
// counts are aggregated from the join tables at read time; no denormalized
// counter exists anywhere.
func (r *PostgresPostRepository) ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFeedPageSize
	}
	if limit > MaxFeedPageSize {
		limit = MaxFeedPageSize
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where := "WHERE TRUE"
	args := []any{}

	if len(q.Authors) > 0 {
		args = append(args, q.Authors)
		where += fmt.Sprintf(" AND p.owner_id = ANY($%d)", len(args))
	}

	if !q.CursorTime.IsZero() {
		args = append(args, q.CursorTime, q.CursorID)
		where += fmt.Sprintf(" AND (p.created_at, p.id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit)
	query := fmt.Sprintf(`%s
        %s
        ORDER BY p.created_at DESC, p.id DESC
        LIMIT $%d
    `, postProjection, where, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		if err := scanPost(rows, &post); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed: %w", err)
	}

	return posts, nil
}

func scanPost(row pgx.Row, post *models.Post) error {
	return row.Scan(
		&post.ID, &post.OwnerID, &post.MediaURL, &post.Caption, &post.Filter, &post.PostType, &post.CreatedAt,
		&post.AuthorName, &post.AuthorAvatar, &post.LikesCount, &post.CommentsCount,
	)
}

var _ PostRepository = (*PostgresPostRepository)(nil)
