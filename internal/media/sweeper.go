package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ObjectDeleter removes a stored object by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// SweeperConfig controls the concurrency and retry characteristics of the
// sweeper.
type SweeperConfig struct {
	QueueSize   int
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Sweeper asynchronously deletes orphaned media objects, the uploads whose
// post row never made it into the database. Deletion is retried a bounded
// number of times; an object that survives all attempts is logged and
// abandoned.
type Sweeper struct {
	deleter     ObjectDeleter
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration

	jobs   chan sweepJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type sweepJob struct {
	key string
}

var errSweeperClosed = errors.New("media sweeper closed")

// NewSweeper constructs a background worker pool deleting orphaned objects.
func NewSweeper(deleter ObjectDeleter, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		deleter:     deleter,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		jobs:        make(chan sweepJob, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go s.worker()
	}

	return s
}

// Enqueue schedules deletion of the object at key.
func (s *Sweeper) Enqueue(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("media sweeper: empty key")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errSweeperClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errSweeperClosed
	case s.jobs <- sweepJob{key: key}:
		return nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.cancel()
		close(s.jobs)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Sweeper) worker() {
	defer s.wg.Done()

	for job := range s.jobs {
		s.handleJob(job)
	}
}

func (s *Sweeper) handleJob(job sweepJob) {
	if s.deleter == nil {
		s.logger.Error("media sweeper missing deleter", "key", job.key)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = s.deleter.Delete(ctx, job.key)
		cancel()

		if lastErr == nil {
			s.logger.Info("orphaned media object removed", "key", job.key, "attempt", attempt)
			return
		}
		if attempt < s.maxAttempts {
			time.Sleep(s.retryDelay)
		}
	}

	s.logger.Error("orphaned media object not removed", "key", job.key, "attempts", s.maxAttempts, "error", lastErr)
}
