package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

const trendingCreators = 5

// EngagementHandler implements like, bookmark, comment, and follow endpoints.
type EngagementHandler struct {
	Engagement EngagementStore
	Follows    FollowStore
	Profiles   ProfileStore

	NowFunc func() time.Time
}

type toggleRequest struct {
	PostID string `json:"postId"`
}

// ToggleLike handles POST /api/v1/posts/like requests. The response carries
// the state the database landed on plus fresh counts, so clients render what
// the server confirmed.
func (h EngagementHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "liked", func(ctx context.Context, postID, userID string) (bool, error) {
		return h.Engagement.ToggleLike(ctx, postID, userID)
	})
}

// ToggleBookmark handles POST /api/v1/posts/save requests.
func (h EngagementHandler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "saved", func(ctx context.Context, postID, userID string) (bool, error) {
		return h.Engagement.ToggleBookmark(ctx, postID, userID)
	})
}

func (h EngagementHandler) toggle(w http.ResponseWriter, r *http.Request, field string, op func(context.Context, string, string) (bool, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Engagement == nil {
		logger.Error("engagement store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "engagement unavailable")
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid toggle payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PostID == "" {
		respondError(ctx, w, http.StatusBadRequest, "postId is required")
		return
	}

	active, err := op(ctx, req.PostID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "post not found")
			return
		}
		logger.Error("toggle engagement", "error", err, "postId", req.PostID, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update engagement")
		return
	}

	likes, comments, err := h.Engagement.Counts(ctx, req.PostID)
	if err != nil {
		logger.Error("aggregate engagement counts", "error", err, "postId", req.PostID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to read engagement")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		field:           active,
		"likesCount":    likes,
		"commentsCount": comments,
	})
}

type commentRequest struct {
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

// AddComment handles POST /api/v1/comments requests. Comments are
// append-only; blank content is rejected before it reaches the store.
func (h EngagementHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Engagement == nil {
		logger.Error("engagement store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "comments unavailable")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.PostID == "" || req.Content == "" {
		respondError(ctx, w, http.StatusBadRequest, "postId and content are required")
		return
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    req.PostID,
		UserID:    userID,
		Content:   req.Content,
		CreatedAt: h.now(),
	}

	if err := h.Engagement.AddComment(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "post not found")
			return
		}
		logger.Error("insert comment", "error", err, "postId", req.PostID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newCommentView(comment))
}

// ListComments handles GET /api/v1/comments?post= requests, oldest first.
func (h EngagementHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	postID := r.URL.Query().Get("post")
	if postID == "" {
		respondError(ctx, w, http.StatusBadRequest, "post query parameter is required")
		return
	}

	if h.Engagement == nil {
		logger.Error("engagement store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "comments unavailable")
		return
	}

	comments, err := h.Engagement.ListComments(ctx, postID)
	if err != nil {
		logger.Error("list comments", "error", err, "postId", postID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load comments")
		return
	}

	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		views = append(views, newCommentView(comment))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"comments": views})
}

type followRequest struct {
	UserID string `json:"userId"`
}

// ToggleFollow handles POST /api/v1/follows requests.
func (h EngagementHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	followerID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Follows == nil {
		logger.Error("follow store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "follows unavailable")
		return
	}

	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid follow payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(ctx, w, http.StatusBadRequest, "userId is required")
		return
	}

	following, err := h.Follows.Toggle(ctx, followerID, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusBadRequest, "cannot follow yourself")
			return
		}
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "creator not found")
			return
		}
		logger.Error("toggle follow", "error", err, "followeeId", req.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update follow")
		return
	}

	followers, _, err := h.Follows.Counts(ctx, req.UserID)
	if err != nil {
		logger.Error("aggregate follow counts", "error", err, "userId", req.UserID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to read follows")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"following": following,
		"followers": followers,
	})
}

// Trending handles GET /api/v1/creators/trending requests.
func (h EngagementHandler) Trending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Follows == nil {
		logger.Error("follow store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "creators unavailable")
		return
	}

	creators, err := h.Follows.Trending(ctx, trendingCreators)
	if err != nil {
		logger.Error("list trending creators", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load creators")
		return
	}

	views := make([]creatorView, 0, len(creators))
	for _, creator := range creators {
		views = append(views, newCreatorView(creator))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"creators": views})
}

// SearchCreators handles GET /api/v1/creators?q=&limit= requests, matching
// usernames by prefix.
func (h EngagementHandler) SearchCreators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "creators unavailable")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(ctx, w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(ctx, w, http.StatusBadRequest, "invalid limit")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	creators, err := h.Profiles.Search(ctx, query, limit)
	if err != nil {
		logger.Error("search creators", "error", err, "query", query)
		respondError(ctx, w, http.StatusInternalServerError, "failed to search creators")
		return
	}

	views := make([]creatorView, 0, len(creators))
	for _, creator := range creators {
		views = append(views, newCreatorView(creator))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"creators": views})
}

func (h EngagementHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
