package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parable/backend/internal/feed"
	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

// FeedHandler serves paginated feed reads and the live post stream.
type FeedHandler struct {
	Posts    PostStore
	Follows  FollowStore
	Identity IdentityResolver
	Notifier FeedNotifier
}

type feedResponse struct {
	Posts      []postView `json:"posts"`
	NextCursor string     `json:"nextCursor,omitempty"`
	HasMore    bool       `json:"hasMore"`
}

// List handles GET /api/v1/feed?mode=&profile=&cursor=&limit= requests.
// Repeating a request with the same cursor returns the same page, so clients
// that fire twice cannot duplicate entries.
func (h FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Posts == nil {
		logger.Error("post store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "feed unavailable")
		return
	}

	query := r.URL.Query()
	mode := query.Get("mode")
	if mode == "" {
		mode = "home"
	}

	limit := repositories.DefaultFeedPageSize
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if limit > repositories.MaxFeedPageSize {
		limit = repositories.MaxFeedPageSize
	}

	var authors []string
	switch mode {
	case "home":
	case "profile":
		owner := query.Get("profile")
		if owner == "" {
			respondError(ctx, w, http.StatusBadRequest, "profile mode requires a profile id")
			return
		}
		authors = []string{owner}
	case "following":
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			respondError(ctx, w, http.StatusUnauthorized, "authentication required")
			return
		}
		if h.Follows == nil {
			logger.Error("follow store unavailable")
			respondError(ctx, w, http.StatusInternalServerError, "feed unavailable")
			return
		}
		followees, err := h.Follows.ListFollowees(ctx, userID)
		if err != nil {
			logger.Error("list followees", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "feed unavailable")
			return
		}
		// Following nobody means an empty feed, never an unscoped query.
		if len(followees) == 0 {
			respondJSON(ctx, w, http.StatusOK, feedResponse{Posts: []postView{}})
			return
		}
		authors = followees
	default:
		respondError(ctx, w, http.StatusBadRequest, "unknown feed mode")
		return
	}

	loader := feed.NewLoader(feed.SourceFunc(func(pageCtx context.Context, cursorTime time.Time, cursorID string, pageSize int) ([]models.Post, error) {
		return h.Posts.ListFeed(pageCtx, repositories.FeedQuery{
			Authors:    authors,
			Limit:      pageSize,
			CursorTime: cursorTime,
			CursorID:   cursorID,
		})
	}), limit)

	var (
		posts []models.Post
		err   error
	)
	if raw := query.Get("cursor"); raw != "" {
		cursorTime, cursorID, decodeErr := decodeCursor(raw)
		if decodeErr != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid cursor")
			return
		}
		loader.SetCursor(cursorTime, cursorID)
		posts, err = loader.LoadMore(ctx)
	} else {
		posts, err = loader.LoadInitial(ctx)
	}
	if err != nil {
		logger.Error("load feed page", "error", err, "mode", mode)
		respondError(ctx, w, http.StatusInternalServerError, "feed unavailable")
		return
	}

	resp := feedResponse{Posts: make([]postView, 0, len(posts)), HasMore: loader.HasMore()}
	for _, post := range posts {
		// The projection carries the raw stored avatar key; run it through
		// the resolver so sentinel suppression and public-URL resolution
		// match post-create responses and stream events.
		if h.Identity != nil {
			identity := h.Identity.Resolve(ctx, post.OwnerID)
			post.AuthorName = identity.DisplayName
			post.AuthorAvatar = identity.AvatarURL
		}
		resp.Posts = append(resp.Posts, newPostView(post))
	}
	if cursorTime, cursorID := loader.Cursor(); loader.HasMore() && !cursorTime.IsZero() {
		resp.NextCursor = encodeCursor(cursorTime, cursorID)
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Stream handles GET /api/v1/feed/stream requests as server-sent events.
// Each freshly published post arrives as one JSON data frame.
func (h FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Notifier == nil {
		logger.Error("feed notifier unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "feed stream unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(ctx, w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.Notifier.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case post, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(newPostView(post))
			if err != nil {
				logger.Error("encode stream event", "error", err, "postId", post.ID)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Cursors travel as "<unix-nanos>.<post-id>", the sort key of the last post
// on the previous page.
func encodeCursor(cursorTime time.Time, cursorID string) string {
	return fmt.Sprintf("%d.%s", cursorTime.UnixNano(), cursorID)
}

func decodeCursor(raw string) (time.Time, string, error) {
	nanosRaw, id, ok := strings.Cut(raw, ".")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("malformed cursor %q", raw)
	}
	nanos, err := strconv.ParseInt(nanosRaw, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed cursor %q: %w", raw, err)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
