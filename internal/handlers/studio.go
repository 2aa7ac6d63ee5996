package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/parable/backend/internal/live"
	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/middleware"
)

// StudioHandler drives per-broadcaster studio controllers. Controllers are
// created lazily and kept for the life of the process; the studio is UI
// state, not persisted data.
type StudioHandler struct {
	Minter    RoomTokenMinter
	Identity  IdentityResolver
	ServerURL string

	mu          sync.Mutex
	controllers map[string]*live.Controller
}

func (h *StudioHandler) controller(userID string) *live.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.controllers == nil {
		h.controllers = make(map[string]*live.Controller)
	}
	controller, ok := h.controllers[userID]
	if !ok {
		controller = live.NewController(h.Minter, h.ServerURL)
		h.controllers[userID] = controller
	}
	return controller
}

type goLiveRequest struct {
	Room string `json:"room"`
}

// GoLive handles POST /api/v1/live/go requests.
func (h *StudioHandler) GoLive(w http.ResponseWriter, r *http.Request) {
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

	var req goLiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid go-live payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := userID
	if h.Identity != nil {
		name = h.Identity.Resolve(ctx, userID).DisplayName
	}

	snapshot, err := h.controller(userID).GoLive(ctx, userID, name, req.Room)
	if err != nil {
		logger.Warn("go live failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusBadGateway, snapshot)
		return
	}

	respondJSON(ctx, w, http.StatusOK, snapshot)
}

// EndLive handles POST /api/v1/live/end requests.
func (h *StudioHandler) EndLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.controller(userID).EndLive())
}

type devicesRequest struct {
	Camera *bool `json:"camera"`
	Mic    *bool `json:"mic"`
}

// Devices handles PATCH /api/v1/live/devices requests.
func (h *StudioHandler) Devices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
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

	var req devicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid devices payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	controller := h.controller(userID)
	snapshot := controller.Snapshot()
	if req.Camera != nil {
		snapshot = controller.SetCamera(*req.Camera)
	}
	if req.Mic != nil {
		snapshot = controller.SetMic(*req.Mic)
	}

	respondJSON(ctx, w, http.StatusOK, snapshot)
}

type chatPostRequest struct {
	Content string `json:"content"`
}

// Chat handles POST /api/v1/live/chat requests against the simulated
// overlay.
func (h *StudioHandler) Chat(w http.ResponseWriter, r *http.Request) {
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

	var req chatPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid chat payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondError(ctx, w, http.StatusBadRequest, "content is required")
		return
	}

	author := userID
	if h.Identity != nil {
		author = h.Identity.Resolve(ctx, userID).DisplayName
	}

	respondJSON(ctx, w, http.StatusOK, h.controller(userID).PostChat(author, req.Content))
}

// Reaction handles POST /api/v1/live/reaction requests.
func (h *StudioHandler) Reaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.controller(userID).AddReaction())
}

// Offering handles POST /api/v1/live/offering requests.
func (h *StudioHandler) Offering(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.controller(userID).AddOffering())
}

// State handles GET /api/v1/live/state requests.
func (h *StudioHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.controller(userID).Snapshot())
}
