package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type deleterStub struct {
	mu       sync.Mutex
	deleted  []string
	failures map[string]int
}

func (d *deleterStub) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if remaining := d.failures[key]; remaining > 0 {
		d.failures[key] = remaining - 1
		return errors.New("service unavailable")
	}
	d.deleted = append(d.deleted, key)
	return nil
}

func (d *deleterStub) deletedKeys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, len(d.deleted))
	copy(keys, d.deleted)
	return keys
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperDeletesEnqueuedObjects(t *testing.T) {
	deleter := &deleterStub{}
	sweeper := NewSweeper(deleter, SweeperConfig{QueueSize: 4, Workers: 2}, discardLogger())

	for _, key := range []string{"user-1/1.jpg", "user-1/2.jpg", "user-2/3.jpg"} {
		if err := sweeper.Enqueue(context.Background(), key); err != nil {
			t.Fatalf("enqueue %s: %v", key, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sweeper.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := len(deleter.deletedKeys()); got != 3 {
		t.Fatalf("expected 3 deletions got %d", got)
	}
}

func TestSweeperRetriesTransientFailures(t *testing.T) {
	deleter := &deleterStub{failures: map[string]int{"user-1/1.jpg": 2}}
	sweeper := NewSweeper(deleter, SweeperConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, discardLogger())

	if err := sweeper.Enqueue(context.Background(), "user-1/1.jpg"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sweeper.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	keys := deleter.deletedKeys()
	if len(keys) != 1 || keys[0] != "user-1/1.jpg" {
		t.Fatalf("expected retried deletion got %v", keys)
	}
}

func TestSweeperGivesUpAfterMaxAttempts(t *testing.T) {
	deleter := &deleterStub{failures: map[string]int{"user-1/1.jpg": 10}}
	sweeper := NewSweeper(deleter, SweeperConfig{MaxAttempts: 2, RetryDelay: time.Millisecond}, discardLogger())

	if err := sweeper.Enqueue(context.Background(), "user-1/1.jpg"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sweeper.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := len(deleter.deletedKeys()); got != 0 {
		t.Fatalf("expected no deletion got %d", got)
	}
}

func TestSweeperRejectsAfterShutdown(t *testing.T) {
	sweeper := NewSweeper(&deleterStub{}, SweeperConfig{}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sweeper.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if err := sweeper.Enqueue(context.Background(), "user-1/1.jpg"); !errors.Is(err, errSweeperClosed) {
		t.Fatalf("expected closed error got %v", err)
	}

	if err := sweeper.Enqueue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
