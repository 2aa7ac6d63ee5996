package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

const maxUploadBytes = 10 << 20

// PostHandler implements the composer's publish endpoint.
type PostHandler struct {
	Posts    PostStore
	Storage  MediaStorage
	Sweeper  OrphanSweeper
	Identity IdentityResolver
	Notifier FeedNotifier

	NowFunc func() time.Time
}

// Create handles POST /api/v1/posts multipart requests. The image is stored
// first and the row inserted second; when the insert fails the stored object
// is deleted so no orphan survives, with the background sweeper as the
// fallback when that delete also fails.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "posts.create")
	defer span.End()
	logger := logging.FromContext(ctx)

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Posts == nil || h.Storage == nil {
		logger.Error("composer dependencies unavailable", "hasPosts", h.Posts != nil, "hasStorage", h.Storage != nil)
		respondError(ctx, w, http.StatusInternalServerError, "post creation unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		logger.Warn("missing image file", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "an image file is required")
		return
	}
	defer file.Close()

	now := h.now()
	key := fmt.Sprintf("%s/%d%s", userID, now.UnixNano(), strings.ToLower(path.Ext(header.Filename)))

	mediaURL, err := h.Storage.Save(ctx, key, file)
	if err != nil {
		logger.Error("store media object", "error", err, "key", key)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store image")
		return
	}

	post := models.Post{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		MediaURL:  mediaURL,
		Caption:   strings.TrimSpace(r.FormValue("caption")),
		Filter:    strings.TrimSpace(r.FormValue("filter")),
		PostType:  models.PostTypeImage,
		CreatedAt: now,
	}

	if err := h.Posts.Create(ctx, post); err != nil {
		logger.Error("insert post", "error", err, "key", key)
		if delErr := h.Storage.Delete(ctx, key); delErr != nil {
			logger.Error("compensating delete failed", "error", delErr, "key", key)
			if h.Sweeper != nil {
				if sweepErr := h.Sweeper.Enqueue(ctx, key); sweepErr != nil {
					logger.Error("enqueue orphan cleanup", "error", sweepErr, "key", key)
				}
			}
		}
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "post already exists")
			return
		}
		respondError(ctx, w, http.StatusInternalServerError, "failed to create post")
		return
	}

	if h.Identity != nil {
		identity := h.Identity.Resolve(ctx, userID)
		post.AuthorName = identity.DisplayName
		post.AuthorAvatar = identity.AvatarURL
	}

	if h.Notifier != nil {
		h.Notifier.Publish(post)
	}

	respondJSON(ctx, w, http.StatusCreated, newPostView(post))
}

func (h PostHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
