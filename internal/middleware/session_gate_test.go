package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type validatorStub struct {
	userID string
	err    error
}

func (v validatorStub) Validate(context.Context, string) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	return v.userID, nil
}

func gateRequest(t *testing.T, validator SessionValidator, path, cookie string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	capturedUserID := ""
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := SessionGate("parable_session", validator)(next)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "parable_session", Value: cookie})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, capturedUserID
}

func TestSessionGateRedirectsPages(t *testing.T) {
	rec, _ := gateRequest(t, validatorStub{}, "/my-sanctuary", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?next=%2Fmy-sanctuary" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestSessionGateRejectsAPIRequests(t *testing.T) {
	rec, _ := gateRequest(t, validatorStub{}, "/api/v1/feed", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestSessionGatePublicPaths(t *testing.T) {
	for _, path := range []string{
		"/",
		"/login",
		"/create-account",
		"/welcome",
		"/healthz",
		"/auth/callback",
		"/_next/static/chunks/main.js",
		"/favicon.ico",
		"/logo.svg",
		"/api/v1/auth/login",
	} {
		rec, _ := gateRequest(t, validatorStub{}, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("path %s: expected pass-through got %d", path, rec.Code)
		}
	}
}

func TestSessionGatePassesValidSessions(t *testing.T) {
	rec, userID := gateRequest(t, validatorStub{userID: "user-1"}, "/my-sanctuary", "token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if userID != "user-1" {
		t.Fatalf("expected user id in context got %q", userID)
	}
}

func TestSessionGateBouncesAuthenticatedLogin(t *testing.T) {
	for _, path := range []string{"/login", "/create-account"} {
		rec, _ := gateRequest(t, validatorStub{userID: "user-1"}, path, "token")
		if rec.Code != http.StatusFound {
			t.Fatalf("path %s: expected 302 got %d", path, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != LandingPath {
			t.Fatalf("unexpected location %q", got)
		}
	}
}

func TestSessionGateFailsClosed(t *testing.T) {
	// A store error during validation gates the request the same as an
	// invalid token.
	rec, _ := gateRequest(t, validatorStub{err: errors.New("store down")}, "/my-sanctuary", "token")
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", rec.Code)
	}

	rec, _ = gateRequest(t, validatorStub{err: errors.New("store down")}, "/api/v1/feed", "token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
