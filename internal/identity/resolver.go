package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parable/backend/internal/logging"
	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

// FallbackDisplayName is shown when neither the profile nor the account
// carries a usable name.
const FallbackDisplayName = "Authorized User"

// avatarSentinel marks seeded placeholder avatars that must never be served.
const avatarSentinel = "kirk"

// ProfileFinder looks up the profile for a user id.
type ProfileFinder interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
}

// UserFinder looks up the account record for a user id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// URLBuilder turns a stored object key into a publicly reachable URL.
type URLBuilder interface {
	PublicURL(key string) string
}

// Resolver derives the display identity for a user from their profile and
// account records. Resolution degrades instead of failing: when lookups
// error out the caller still receives a usable identity.
type Resolver struct {
	profiles ProfileFinder
	users    UserFinder
	urls     URLBuilder

	// NowFunc stamps avatar URLs for cache busting. Tests may override it.
	NowFunc func() time.Time
}

// NewResolver wires a Resolver from its lookups. urls may be nil when no
// object store is configured; stored avatar keys then resolve to nothing.
func NewResolver(profiles ProfileFinder, users UserFinder, urls URLBuilder) *Resolver {
	return &Resolver{
		profiles: profiles,
		users:    users,
		urls:     urls,
		NowFunc:  time.Now,
	}
}

// Resolve returns the identity to present for userID. The display name is the
// profile username when set, then the account username, then a generic
// fallback. Lookup failures other than missing records are logged and
// swallowed so a broken profile row never blanks the header.
func (r *Resolver) Resolve(ctx context.Context, userID string) models.Identity {
	resolved := models.Identity{DisplayName: FallbackDisplayName}

	var profile models.Profile
	if r.profiles != nil {
		found, err := r.profiles.Find(ctx, userID)
		if err == nil {
			profile = found
		} else if !errors.Is(err, repositories.ErrNotFound) {
			logging.FromContext(ctx).Warn("resolve profile identity", "error", err, "userId", userID)
			return resolved
		}
	}

	if name := strings.TrimSpace(profile.Username); name != "" {
		resolved.DisplayName = name
	} else if r.users != nil {
		user, err := r.users.FindByID(ctx, userID)
		if err == nil {
			if name := strings.TrimSpace(user.Username); name != "" {
				resolved.DisplayName = name
			}
		} else if !errors.Is(err, repositories.ErrNotFound) {
			logging.FromContext(ctx).Warn("resolve account identity", "error", err, "userId", userID)
		}
	}

	resolved.AvatarURL = r.avatarURL(profile.AvatarURL)
	return resolved
}

func (r *Resolver) avatarURL(stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" || strings.Contains(stored, avatarSentinel) {
		return ""
	}
	if strings.HasPrefix(stored, "http://") || strings.HasPrefix(stored, "https://") {
		return stored
	}
	if r.urls == nil {
		return ""
	}
	return fmt.Sprintf("%s?t=%d", r.urls.PublicURL(stored), r.NowFunc().Unix())
}
