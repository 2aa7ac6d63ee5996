package models

import "time"

// User is the authentication record for an account. Username and FullName
// duplicate the values captured at sign-up so identity resolution has a
// fallback when the profile row is missing or incomplete.
type User struct {
	ID        string
	Email     string
	Password  string
	Username  string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the public identity record keyed by the owning user id. It is
// created at sign-up and only ever mutated by its owner.
type Profile struct {
	UserID             string
	Username           string
	FullName           string
	AvatarURL          string
	Bio                string
	Role               string
	OnboardingComplete bool
	UpdatedAt          time.Time
}

// Post is a user-authored media entry. Immutable after creation; engagement
// counts are aggregated from the join tables at read time and never stored.
type Post struct {
	ID        string
	OwnerID   string
	MediaURL  string
	Caption   string
	Filter    string
	PostType  string
	CreatedAt time.Time

	// Read-time projections.
	AuthorName    string
	AuthorAvatar  string
	LikesCount    int
	CommentsCount int
}

// PostTypeImage marks posts produced by the composer's image upload flow.
const PostTypeImage = "image"

// Comment is an append-only engagement row on a post.
type Comment struct {
	ID         string
	PostID     string
	UserID     string
	Content    string
	CreatedAt  time.Time
	AuthorName string
}

// Follow records a follower → followee relationship.
type Follow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}

// Creator is a lightweight profile projection used by search and trending
// listings.
type Creator struct {
	UserID    string
	Username  string
	FullName  string
	AvatarURL string
	Followers int
}

// Identity is the resolved display identity for the header badge.
type Identity struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
