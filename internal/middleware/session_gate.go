package middleware

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// LandingPath is where authenticated visitors land by default.
const LandingPath = "/my-sanctuary"

type contextKey string

const userIDKey contextKey = "parable.userID"

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// SessionValidator resolves a session cookie value to a user id. A failure,
// whatever its cause, means the request is treated as unauthenticated.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (string, error)
}

var staticAssetPattern = regexp.MustCompile(`\.[^/]+$`)

var publicPaths = map[string]struct{}{
	"/":               {},
	"/login":          {},
	"/create-account": {},
	"/welcome":        {},
	"/healthz":        {},
	"/auth/callback":  {},
}

func isPublicPath(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	if strings.HasPrefix(path, "/_next") || strings.HasPrefix(path, "/favicon") {
		return true
	}
	if strings.HasPrefix(path, "/api/v1/auth/") {
		return true
	}
	return staticAssetPattern.MatchString(path)
}

// SessionGate guards every non-public path behind a valid session. Page
// requests without one are redirected to the login screen carrying the
// original path; API requests get a 401 since their callers cannot follow
// redirects. An authenticated visit to the login screen is bounced to the
// landing page. Validation failures of any kind, including store errors,
// gate the request.
func SessionGate(cookieName string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			userID := ""
			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				if resolved, err := sessions.Validate(r.Context(), cookie.Value); err == nil {
					userID = resolved
				}
			}

			if userID != "" {
				if path == "/login" || path == "/create-account" {
					http.Redirect(w, r, LandingPath, http.StatusFound)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
				return
			}

			if isPublicPath(path) {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required"}`))
				return
			}

			http.Redirect(w, r, "/login?next="+url.QueryEscape(path), http.StatusFound)
		})
	}
}
