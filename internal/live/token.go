package live

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRoom is joined when a broadcast request names no room.
const DefaultRoom = "parable-live"

// DefaultTokenTTL bounds how long a minted room token stays valid.
const DefaultTokenTTL = 2 * time.Hour

// ErrNotConfigured indicates the media server credentials are absent.
var ErrNotConfigured = errors.New("live: media server is not configured")

// VideoGrant describes the room permissions embedded in a room token.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin"`
	Room         string `json:"room"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type roomClaims struct {
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// TokenMinter signs short-lived room access tokens for the media server.
// Tokens are HS256 JWTs carrying the API key as issuer and the participant
// identity as subject, the format LiveKit-compatible servers verify.
type TokenMinter struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration

	// NowFunc stamps token validity windows. Tests may override it.
	NowFunc func() time.Time
}

// NewTokenMinter builds a minter for the given credentials. Empty credentials
// are allowed; Mint then reports ErrNotConfigured.
func NewTokenMinter(apiKey, apiSecret string, ttl time.Duration) *TokenMinter {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenMinter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
		NowFunc:   time.Now,
	}
}

// Configured reports whether credentials are present.
func (m *TokenMinter) Configured() bool {
	return m.apiKey != "" && m.apiSecret != ""
}

// Mint signs a publish-and-subscribe token for identity in room. An empty
// room falls back to DefaultRoom and an empty name falls back to identity.
func (m *TokenMinter) Mint(identity, name, room string) (string, error) {
	if !m.Configured() {
		return "", ErrNotConfigured
	}
	if identity == "" {
		return "", errors.New("live: identity is required")
	}
	if room == "" {
		room = DefaultRoom
	}
	if name == "" {
		name = identity
	}

	now := m.NowFunc()
	claims := roomClaims{
		Name: name,
		Video: VideoGrant{
			RoomJoin:     true,
			Room:         room,
			CanPublish:   true,
			CanSubscribe: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.apiSecret))
}
