package feed

import (
	"context"
	"sync"
	"time"

	"github.com/parable/backend/internal/models"
)

// Source supplies one reverse-chronological page of posts. A zero cursorTime
// requests the first page; otherwise only posts strictly older than the
// cursor are returned.
type Source interface {
	Page(ctx context.Context, cursorTime time.Time, cursorID string, limit int) ([]models.Post, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, cursorTime time.Time, cursorID string, limit int) ([]models.Post, error)

// Page implements Source.
func (f SourceFunc) Page(ctx context.Context, cursorTime time.Time, cursorID string, limit int) ([]models.Post, error) {
	return f(ctx, cursorTime, cursorID, limit)
}

// Loader maintains an ordered, deduplicated, append-only view over a feed
// source. LoadMore is guarded: while a fetch is in flight, or once the source
// is exhausted, further calls are no-ops returning the current snapshot.
// That guard is the loader's only concurrency discipline and is what keeps
// repeated triggers from duplicating a page.
type Loader struct {
	source   Source
	pageSize int

	mu         sync.Mutex
	loading    bool
	posts      []models.Post
	seen       map[string]struct{}
	cursorTime time.Time
	cursorID   string
	hasMore    bool
}

// NewLoader constructs a Loader reading pages of pageSize from source.
func NewLoader(source Source, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Loader{
		source:   source,
		pageSize: pageSize,
		seen:     make(map[string]struct{}),
	}
}

// LoadInitial fetches the first page, resetting any prior state. The cursor
// lands on the oldest returned post and hasMore reflects whether the page
// came back full.
func (l *Loader) LoadInitial(ctx context.Context) ([]models.Post, error) {
	l.mu.Lock()
	if l.loading {
		snapshot := l.snapshotLocked()
		l.mu.Unlock()
		return snapshot, nil
	}
	l.loading = true
	l.mu.Unlock()

	page, err := l.source.Page(ctx, time.Time{}, "", l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		return l.snapshotLocked(), err
	}

	l.posts = nil
	l.seen = make(map[string]struct{})
	l.cursorTime = time.Time{}
	l.cursorID = ""

	l.appendLocked(page)
	l.hasMore = len(page) == l.pageSize

	return l.snapshotLocked(), nil
}

// LoadMore fetches the next page. It is a no-op returning the unchanged
// snapshot when a load is already in flight, the source is exhausted, or no
// cursor has been established yet.
func (l *Loader) LoadMore(ctx context.Context) ([]models.Post, error) {
	l.mu.Lock()
	if l.loading || !l.hasMore || l.cursorTime.IsZero() {
		snapshot := l.snapshotLocked()
		l.mu.Unlock()
		return snapshot, nil
	}
	l.loading = true
	cursorTime, cursorID := l.cursorTime, l.cursorID
	l.mu.Unlock()

	page, err := l.source.Page(ctx, cursorTime, cursorID, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		return l.snapshotLocked(), err
	}

	l.appendLocked(page)
	l.hasMore = len(page) == l.pageSize

	return l.snapshotLocked(), nil
}

// Prepend inserts a freshly published post at the head of the list without
// refetching. Already-seen posts are ignored.
func (l *Loader) Prepend(post models.Post) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[post.ID]; ok {
		return
	}
	l.seen[post.ID] = struct{}{}
	l.posts = append([]models.Post{post}, l.posts...)
}

// SetCursor resumes pagination from a previously reported cursor, as when a
// client carries the cursor across stateless requests.
func (l *Loader) SetCursor(cursorTime time.Time, cursorID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cursorTime = cursorTime
	l.cursorID = cursorID
	l.hasMore = !cursorTime.IsZero()
}

// Posts returns the current snapshot.
func (l *Loader) Posts() []models.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// HasMore reports whether the source may still hold older posts.
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Cursor returns the creation timestamp and id of the oldest loaded post.
func (l *Loader) Cursor() (time.Time, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursorTime, l.cursorID
}

func (l *Loader) appendLocked(page []models.Post) {
	for _, post := range page {
		if _, ok := l.seen[post.ID]; ok {
			continue
		}
		l.seen[post.ID] = struct{}{}
		l.posts = append(l.posts, post)
	}

	if len(page) > 0 {
		last := page[len(page)-1]
		l.cursorTime = last.CreatedAt
		l.cursorID = last.ID
	}
}

func (l *Loader) snapshotLocked() []models.Post {
	snapshot := make([]models.Post, len(l.posts))
	copy(snapshot, l.posts)
	return snapshot
}
