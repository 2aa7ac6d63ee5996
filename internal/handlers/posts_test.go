package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parable/backend/internal/middleware"
	"github.com/parable/backend/internal/models"
)

func multipartUpload(t *testing.T, field, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("image-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestPostHandlerCreate(t *testing.T) {
	posts := &inMemoryPostStore{}
	storage := newInMemoryStorage()
	bus := newBusStub()
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	handler := PostHandler{
		Posts:    posts,
		Storage:  storage,
		Identity: identityStub{identity: models.Identity{DisplayName: "Wanderer"}},
		Notifier: bus,
		NowFunc:  func() time.Time { return fixed },
	}

	body, contentType := multipartUpload(t, "image", "Sunrise.JPG", map[string]string{
		"caption": "morning light",
		"filter":  "golden",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var view postView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	wantKey := "user-1/1709294400000000000.jpg"
	if view.MediaURL != "https://media.example.com/"+wantKey {
		t.Fatalf("unexpected media URL %q", view.MediaURL)
	}
	if view.Caption != "morning light" || view.Filter != "golden" || view.PostType != models.PostTypeImage {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.AuthorName != "Wanderer" {
		t.Fatalf("expected resolved author got %q", view.AuthorName)
	}

	if _, ok := storage.objects[wantKey]; !ok {
		t.Fatalf("expected stored object at %s", wantKey)
	}
	if len(posts.posts) != 1 {
		t.Fatalf("expected 1 post row got %d", len(posts.posts))
	}
	if len(bus.published) != 1 || bus.published[0].ID != view.ID {
		t.Fatalf("expected post published to the live stream")
	}
}

func TestPostHandlerCreateCompensatesFailedInsert(t *testing.T) {
	posts := &inMemoryPostStore{createErr: errors.New("insert failed")}
	storage := newInMemoryStorage()
	handler := PostHandler{Posts: posts, Storage: storage}

	body, contentType := multipartUpload(t, "image", "a.png", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("expected compensating delete, %d objects remain", len(storage.objects))
	}
	if len(storage.deleted) != 1 || !strings.HasPrefix(storage.deleted[0], "user-1/") {
		t.Fatalf("unexpected deletions %v", storage.deleted)
	}
}

func TestPostHandlerCreateSweepsWhenDeleteFails(t *testing.T) {
	posts := &inMemoryPostStore{createErr: errors.New("insert failed")}
	storage := newInMemoryStorage()
	storage.deleteErr = errors.New("delete failed")
	sweeper := &sweeperStub{}
	handler := PostHandler{Posts: posts, Storage: storage, Sweeper: sweeper}

	body, contentType := multipartUpload(t, "image", "a.png", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))

	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if len(sweeper.keys) != 1 || !strings.HasPrefix(sweeper.keys[0], "user-1/") {
		t.Fatalf("expected orphan handed to the sweeper, got %v", sweeper.keys)
	}
}

func TestPostHandlerCreateValidation(t *testing.T) {
	handler := PostHandler{Posts: &inMemoryPostStore{}, Storage: newInMemoryStorage()}

	// Unauthenticated request.
	body, contentType := multipartUpload(t, "image", "a.png", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	// Missing image field.
	body, contentType = multipartUpload(t, "video", "a.mp4", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/posts", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
