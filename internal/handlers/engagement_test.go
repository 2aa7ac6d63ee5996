package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
)

func postJSON(t *testing.T, handler http.HandlerFunc, target string, payload any, userID string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestEngagementToggleLikeRoundTrip(t *testing.T) {
	engagement := newInMemoryEngagement()
	handler := EngagementHandler{Engagement: engagement}

	rec := postJSON(t, handler.ToggleLike, "/api/v1/posts/like", toggleRequest{PostID: "post-1"}, "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["liked"] != true || resp["likesCount"] != float64(1) {
		t.Fatalf("unexpected response %v", resp)
	}

	// Toggling twice restores the original state.
	rec = postJSON(t, handler.ToggleLike, "/api/v1/posts/like", toggleRequest{PostID: "post-1"}, "user-1")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["liked"] != false || resp["likesCount"] != float64(0) {
		t.Fatalf("unexpected response after second toggle %v", resp)
	}
}

func TestEngagementToggleBookmarkIsIndependent(t *testing.T) {
	engagement := newInMemoryEngagement()
	handler := EngagementHandler{Engagement: engagement}

	rec := postJSON(t, handler.ToggleBookmark, "/api/v1/posts/save", toggleRequest{PostID: "post-1"}, "user-1")
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["saved"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	// A bookmark never counts as a like.
	if resp["likesCount"] != float64(0) {
		t.Fatalf("bookmark leaked into likes: %v", resp)
	}
}

func TestEngagementToggleValidation(t *testing.T) {
	handler := EngagementHandler{Engagement: newInMemoryEngagement()}

	rec := postJSON(t, handler.ToggleLike, "/api/v1/posts/like", toggleRequest{}, "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = postJSON(t, handler.ToggleLike, "/api/v1/posts/like", toggleRequest{PostID: "post-1"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestEngagementComments(t *testing.T) {
	engagement := newInMemoryEngagement()
	handler := EngagementHandler{Engagement: engagement}

	rec := postJSON(t, handler.AddComment, "/api/v1/comments", commentRequest{PostID: "post-1", Content: "  amen  "}, "user-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var created commentView
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Content != "amen" {
		t.Fatalf("expected trimmed content got %q", created.Content)
	}

	// Blank content, even whitespace-only, is rejected.
	rec = postJSON(t, handler.AddComment, "/api/v1/comments", commentRequest{PostID: "post-1", Content: "   "}, "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/comments?post=post-1", nil)
	rec = httptest.NewRecorder()
	handler.ListComments(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var listed struct {
		Comments []commentView `json:"comments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Comments) != 1 || listed.Comments[0].ID != created.ID {
		t.Fatalf("unexpected comments %+v", listed.Comments)
	}
}

func TestEngagementFollowToggle(t *testing.T) {
	follows := newInMemoryFollows()
	handler := EngagementHandler{Follows: follows}

	rec := postJSON(t, handler.ToggleFollow, "/api/v1/follows", followRequest{UserID: "creator-1"}, "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["following"] != true || resp["followers"] != float64(1) {
		t.Fatalf("unexpected response %v", resp)
	}

	// Self-follow is rejected.
	rec = postJSON(t, handler.ToggleFollow, "/api/v1/follows", followRequest{UserID: "user-1"}, "user-1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestEngagementTrending(t *testing.T) {
	follows := newInMemoryFollows()
	handler := EngagementHandler{Follows: follows}

	ctx := context.Background()
	for _, follower := range []string{"a", "b", "c"} {
		if _, err := follows.Toggle(ctx, follower, "creator-1"); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	if _, err := follows.Toggle(ctx, "a", "creator-2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/creators/trending", nil)
	rec := httptest.NewRecorder()
	handler.Trending(rec, req)

	var resp struct {
		Creators []creatorView `json:"creators"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Creators) != 2 || resp.Creators[0].UserID != "creator-1" {
		t.Fatalf("unexpected trending order %+v", resp.Creators)
	}
}

func TestEngagementSearchCreators(t *testing.T) {
	profiles := newInMemoryProfileStore()
	profiles.profiles["u1"] = models.Profile{UserID: "u1", Username: "lumen"}
	profiles.profiles["u2"] = models.Profile{UserID: "u2", Username: "luminary"}
	profiles.profiles["u3"] = models.Profile{UserID: "u3", Username: "shadow"}
	handler := EngagementHandler{Profiles: profiles}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/creators?q=lum", nil)
	rec := httptest.NewRecorder()
	handler.SearchCreators(rec, req)

	var resp struct {
		Creators []creatorView `json:"creators"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Creators) != 2 {
		t.Fatalf("expected 2 matches got %d", len(resp.Creators))
	}

	rec = httptest.NewRecorder()
	handler.SearchCreators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/creators", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query got %d", rec.Code)
	}
}
