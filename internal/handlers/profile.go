package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

// avatarPrefix is the object-store prefix for avatar uploads.
const avatarPrefix = "avatars"

// ProfileHandler implements profile read, edit, and avatar endpoints.
type ProfileHandler struct {
	Profiles    ProfileStore
	Follows     FollowStore
	Storage     MediaStorage
	Identity    IdentityResolver
	Invalidator IdentityInvalidator

	NowFunc func() time.Time
}

// Get handles GET /api/v1/profile requests for the signed-in user.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
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

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile unavailable")
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "profile not found")
			return
		}
		logger.Error("find profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	followers, following := 0, 0
	if h.Follows != nil {
		followers, following, err = h.Follows.Counts(ctx, userID)
		if err != nil {
			logger.Error("aggregate follow counts", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to load profile")
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, newProfileView(profile, followers, following))
}

type profilePatch struct {
	Username           *string `json:"username"`
	FullName           *string `json:"fullName"`
	Bio                *string `json:"bio"`
	Role               *string `json:"role"`
	OnboardingComplete *bool   `json:"onboardingComplete"`
}

// Patch handles PATCH /api/v1/profile requests. Only the owner reaches this
// handler; absent fields keep their stored values.
func (h ProfileHandler) Patch(w http.ResponseWriter, r *http.Request) {
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

	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile unavailable")
		return
	}

	var patch profilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("find profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	profile.UserID = userID

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			respondError(ctx, w, http.StatusBadRequest, "username must not be empty")
			return
		}
		profile.Username = username
	}
	if patch.FullName != nil {
		profile.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Bio != nil {
		profile.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.Role != nil {
		profile.Role = strings.TrimSpace(*patch.Role)
	}
	if patch.OnboardingComplete != nil {
		profile.OnboardingComplete = *patch.OnboardingComplete
	}
	profile.UpdatedAt = h.now()

	if err := h.Profiles.Upsert(ctx, profile); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "username already taken")
			return
		}
		logger.Error("upsert profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if h.Invalidator != nil {
		h.Invalidator.Invalidate(userID)
	}

	followers, following := 0, 0
	if h.Follows != nil {
		if f, g, err := h.Follows.Counts(ctx, userID); err == nil {
			followers, following = f, g
		}
	}
	respondJSON(ctx, w, http.StatusOK, newProfileView(profile, followers, following))
}

// UploadAvatar handles POST /api/v1/profile/avatar multipart requests. The
// stored value is the object key; public-URL resolution and cache busting
// happen at identity-resolution time.
func (h ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "profile.upload_avatar")
	defer span.End()
	logger := logging.FromContext(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Profiles == nil || h.Storage == nil {
		logger.Error("avatar dependencies unavailable", "hasProfiles", h.Profiles != nil, "hasStorage", h.Storage != nil)
		respondError(ctx, w, http.StatusInternalServerError, "avatar upload unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("missing avatar file", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "an avatar file is required")
		return
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s%s", avatarPrefix, userID, strings.ToLower(path.Ext(header.Filename)))
	if _, err := h.Storage.Save(ctx, key, file); err != nil {
		logger.Error("store avatar object", "error", err, "key", key)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	profile, err := h.Profiles.Find(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("find profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	profile.UserID = userID
	profile.AvatarURL = key
	profile.UpdatedAt = h.now()

	if err := h.Profiles.Upsert(ctx, profile); err != nil {
		logger.Error("upsert profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if h.Invalidator != nil {
		h.Invalidator.Invalidate(userID)
	}

	identity := models.Identity{}
	if h.Identity != nil {
		identity = h.Identity.Resolve(ctx, userID)
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"avatarKey": key,
		"identity":  identity,
	})
}

// IdentityBadge handles GET /api/v1/identity requests for the header badge.
func (h ProfileHandler) IdentityBadge(w http.ResponseWriter, r *http.Request) {
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

	if h.Identity == nil {
		respondError(ctx, w, http.StatusInternalServerError, "identity unavailable")
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.Identity.Resolve(ctx, userID))
}

func (h ProfileHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
