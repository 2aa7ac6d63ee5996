package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/parable/backend/internal/live"
	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/models"
)

// LiveKitHandler mints media-server room tokens for broadcasters.
type LiveKitHandler struct {
	Sessions  SessionManager
	Identity  IdentityResolver
	Minter    RoomTokenMinter
	ServerURL string
	Limiter   RateLimiter
}

type tokenRequest struct {
	Room string `json:"room"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// Token handles POST /api/v1/livekit/token requests. The caller
// authenticates with a bearer access token; missing media-server credentials
// surface here as a 500 rather than failing the whole process at startup.
func (h LiveKitHandler) Token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "livekit-token") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	accessToken, ok := bearerToken(r)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authorization required")
		return
	}

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "token service unavailable")
		return
	}

	userID, err := h.Sessions.Validate(ctx, accessToken)
	if err != nil {
		logger.Warn("token request with invalid session", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "invalid session")
		return
	}

	if h.Minter == nil || !h.Minter.Configured() {
		logger.Error("media server credentials missing")
		respondError(ctx, w, http.StatusInternalServerError, "live streaming is not configured")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid token payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := models.Identity{DisplayName: userID}
	if h.Identity != nil {
		identity = h.Identity.Resolve(ctx, userID)
	}

	token, err := h.Minter.Mint(userID, identity.DisplayName, req.Room)
	if err != nil {
		logger.Error("mint room token", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	room := req.Room
	if room == "" {
		room = live.DefaultRoom
	}

	respondJSON(ctx, w, http.StatusOK, tokenResponse{
		Token:    token,
		URL:      h.ServerURL,
		Room:     room,
		Identity: userID,
		Name:     identity.DisplayName,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
