package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parable/backend/internal/live"
	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
)

func TestLiveKitHandlerToken(t *testing.T) {
	manager := newTestSessionManager()
	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := LiveKitHandler{
		Sessions:  manager,
		Identity:  identityStub{identity: models.Identity{DisplayName: "Wanderer"}},
		Minter:    live.NewTokenMinter("api-key", "api-secret", time.Hour),
		ServerURL: "wss://live.example.com",
	}

	body, _ := json.Marshal(tokenRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/livekit/token", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.Token(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected signed token")
	}
	if resp.Room != live.DefaultRoom {
		t.Fatalf("expected default room got %q", resp.Room)
	}
	if resp.Identity != "user-1" || resp.Name != "Wanderer" {
		t.Fatalf("unexpected participant %q %q", resp.Identity, resp.Name)
	}
	if resp.URL != "wss://live.example.com" {
		t.Fatalf("unexpected URL %q", resp.URL)
	}
}

func TestLiveKitHandlerRequiresBearer(t *testing.T) {
	handler := LiveKitHandler{
		Sessions: newTestSessionManager(),
		Minter:   live.NewTokenMinter("api-key", "api-secret", time.Hour),
	}

	// No Authorization header at all.
	rec := httptest.NewRecorder()
	handler.Token(rec, httptest.NewRequest(http.MethodPost, "/api/v1/livekit/token", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	// A bearer token no session recognizes.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/livekit/token", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	handler.Token(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	// A non-bearer scheme.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/livekit/token", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	handler.Token(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestLiveKitHandlerUnconfigured(t *testing.T) {
	manager := newTestSessionManager()
	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	handler := LiveKitHandler{
		Sessions: manager,
		Minter:   live.NewTokenMinter("", "", time.Hour),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/livekit/token", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	handler.Token(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestStudioHandlerLifecycle(t *testing.T) {
	handler := &StudioHandler{
		Minter:    live.NewTokenMinter("api-key", "api-secret", time.Hour),
		Identity:  identityStub{identity: models.Identity{DisplayName: "Wanderer"}},
		ServerURL: "wss://live.example.com",
	}

	body, _ := json.Marshal(goLiveRequest{Room: "prayer-room"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/live/go", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	handler.GoLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var snapshot live.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.State != live.StateConnected || snapshot.Room != "prayer-room" || snapshot.Token == "" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	rec = httptest.NewRecorder()
	handler.EndLive(rec, authedRequest(http.MethodPost, "/api/v1/live/end"))

	// Decode into a zero value: the cleared token is omitted from the JSON
	// and must not inherit the previous snapshot's value.
	var ended live.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&ended); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ended.State != live.StateStandby || ended.Token != "" {
		t.Fatalf("expected standby snapshot %+v", ended)
	}
}

func TestStudioHandlerGoLiveUnconfigured(t *testing.T) {
	handler := &StudioHandler{Minter: live.NewTokenMinter("", "", time.Hour)}

	rec := httptest.NewRecorder()
	handler.GoLive(rec, authedRequest(http.MethodPost, "/api/v1/live/go"))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}

	var snapshot live.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.State != live.StateStandby || snapshot.LastError == "" {
		t.Fatalf("expected surfaced standby error %+v", snapshot)
	}
}

func TestStudioHandlerDevicesAndOverlay(t *testing.T) {
	handler := &StudioHandler{Minter: live.NewTokenMinter("api-key", "api-secret", time.Hour)}

	body, _ := json.Marshal(map[string]bool{"camera": false})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/live/devices", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	handler.Devices(rec, req)

	var snapshot live.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.CameraOn || !snapshot.MicOn {
		t.Fatalf("unexpected devices %+v", snapshot)
	}

	body, _ = json.Marshal(chatPostRequest{Content: "welcome"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/live/chat", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec = httptest.NewRecorder()
	handler.Chat(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Reaction(rec, authedRequest(http.MethodPost, "/api/v1/live/reaction"))
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Reactions != 1 {
		t.Fatalf("expected 1 reaction got %d", snapshot.Reactions)
	}

	// Per-user controllers stay isolated.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/live/state", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-2"))
	handler.State(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Reactions != 0 || !snapshot.CameraOn {
		t.Fatalf("controller state leaked across users %+v", snapshot)
	}
}
