package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Profiles    ProfileStore
	Sessions    SessionManager
	Codes       CodeBroker
	Posts       PostStore
	Engagement  EngagementStore
	Follows     FollowStore
	Storage     MediaStorage
	Sweeper     OrphanSweeper
	Identity    IdentityResolver
	Invalidator IdentityInvalidator
	Minter      RoomTokenMinter
	Notifier    FeedNotifier
	Limiter     RateLimiter
	LiveURL     string
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{
		Users:    deps.Users,
		Profiles: deps.Profiles,
		Sessions: deps.Sessions,
		Codes:    deps.Codes,
		Limiter:  deps.Limiter,
	}
	profile := ProfileHandler{
		Profiles:    deps.Profiles,
		Follows:     deps.Follows,
		Storage:     deps.Storage,
		Identity:    deps.Identity,
		Invalidator: deps.Invalidator,
	}
	feed := FeedHandler{
		Posts:    deps.Posts,
		Follows:  deps.Follows,
		Identity: deps.Identity,
		Notifier: deps.Notifier,
	}
	posts := PostHandler{
		Posts:    deps.Posts,
		Storage:  deps.Storage,
		Sweeper:  deps.Sweeper,
		Identity: deps.Identity,
		Notifier: deps.Notifier,
	}
	engagement := EngagementHandler{
		Engagement: deps.Engagement,
		Follows:    deps.Follows,
		Profiles:   deps.Profiles,
	}
	livekit := LiveKitHandler{
		Sessions:  deps.Sessions,
		Identity:  deps.Identity,
		Minter:    deps.Minter,
		ServerURL: deps.LiveURL,
		Limiter:   deps.Limiter,
	}
	studio := &StudioHandler{
		Minter:    deps.Minter,
		Identity:  deps.Identity,
		ServerURL: deps.LiveURL,
	}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/auth/callback", auth.Callback)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)

	mux.HandleFunc("/api/v1/identity", profile.IdentityBadge)
	mux.HandleFunc("/api/v1/profile", profileMethodSwitch(profile))
	mux.HandleFunc("/api/v1/profile/avatar", profile.UploadAvatar)

	mux.HandleFunc("/api/v1/feed", feed.List)
	mux.HandleFunc("/api/v1/feed/stream", feed.Stream)
	mux.HandleFunc("/api/v1/posts", posts.Create)
	mux.HandleFunc("/api/v1/posts/like", engagement.ToggleLike)
	mux.HandleFunc("/api/v1/posts/save", engagement.ToggleBookmark)
	mux.HandleFunc("/api/v1/comments", commentsMethodSwitch(engagement))
	mux.HandleFunc("/api/v1/follows", engagement.ToggleFollow)
	mux.HandleFunc("/api/v1/creators", engagement.SearchCreators)
	mux.HandleFunc("/api/v1/creators/trending", engagement.Trending)

	mux.HandleFunc("/api/v1/livekit/token", livekit.Token)
	mux.HandleFunc("/api/v1/live/go", studio.GoLive)
	mux.HandleFunc("/api/v1/live/end", studio.EndLive)
	mux.HandleFunc("/api/v1/live/devices", studio.Devices)
	mux.HandleFunc("/api/v1/live/chat", studio.Chat)
	mux.HandleFunc("/api/v1/live/reaction", studio.Reaction)
	mux.HandleFunc("/api/v1/live/offering", studio.Offering)
	mux.HandleFunc("/api/v1/live/state", studio.State)
}

func profileMethodSwitch(h ProfileHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Get(w, r)
		case http.MethodPatch:
			h.Patch(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func commentsMethodSwitch(h EngagementHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListComments(w, r)
		case http.MethodPost:
			h.AddComment(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}
