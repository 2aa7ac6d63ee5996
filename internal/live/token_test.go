package live

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenMinterMint(t *testing.T) {
	minter := NewTokenMinter("api-key", "api-secret", 0)
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	minter.NowFunc = func() time.Time { return fixed }

	signed, err := minter.Mint("user-1", "Wanderer", "")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims := &roomClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte("api-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed.Add(time.Minute) }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !token.Valid {
		t.Fatal("expected valid token")
	}

	if claims.Issuer != "api-key" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Name != "Wanderer" {
		t.Fatalf("unexpected name %q", claims.Name)
	}
	if claims.Video.Room != DefaultRoom {
		t.Fatalf("expected default room got %q", claims.Video.Room)
	}
	if !claims.Video.RoomJoin || !claims.Video.CanPublish || !claims.Video.CanSubscribe {
		t.Fatalf("unexpected grant %+v", claims.Video)
	}
	if got := claims.ExpiresAt.Time.Sub(fixed); got != DefaultTokenTTL {
		t.Fatalf("expected %v ttl got %v", DefaultTokenTTL, got)
	}
}

func TestTokenMinterNameDefaultsToIdentity(t *testing.T) {
	minter := NewTokenMinter("api-key", "api-secret", time.Hour)

	signed, err := minter.Mint("user-1", "", "prayer-room")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims := &roomClaims{}
	if _, err := jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte("api-secret"), nil
	}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Name != "user-1" {
		t.Fatalf("expected identity as name got %q", claims.Name)
	}
	if claims.Video.Room != "prayer-room" {
		t.Fatalf("unexpected room %q", claims.Video.Room)
	}
}

func TestTokenMinterUnconfigured(t *testing.T) {
	minter := NewTokenMinter("", "", time.Hour)
	if minter.Configured() {
		t.Fatal("expected unconfigured")
	}
	if _, err := minter.Mint("user-1", "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured got %v", err)
	}
}

func TestTokenMinterRequiresIdentity(t *testing.T) {
	minter := NewTokenMinter("api-key", "api-secret", time.Hour)
	if _, err := minter.Mint("", "", ""); err == nil {
		t.Fatal("expected error for empty identity")
	}
}
