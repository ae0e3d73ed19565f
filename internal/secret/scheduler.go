package secret

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/observability"
)

// SchedulerConfig controls rotation cadence and secret size.
type SchedulerConfig struct {
	Interval time.Duration
	Length   int
}

// Scheduler rotates the signing secret on a fixed interval, independently of
// request traffic. It is the only writer of the Store.
type Scheduler struct {
	store    Store
	interval time.Duration
	length   int
	logger   *zap.Logger
	metrics  *observability.Metrics
	generate func(length int) (Secret, error)

	done      chan struct{}
	rotatedMu sync.RWMutex
	rotatedAt time.Time
}

// NewScheduler builds a scheduler. Interval defaults to three minutes and
// Length is raised to MinLength when smaller.
func NewScheduler(store Store, cfg SchedulerConfig, logger *zap.Logger, metrics *observability.Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Minute
	}
	if cfg.Length < MinLength {
		cfg.Length = MinLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    store,
		interval: cfg.Interval,
		length:   cfg.Length,
		logger:   logger,
		metrics:  metrics,
		generate: Generate,
	}
}

// Start performs the first rotation synchronously and then keeps rotating in
// a background goroutine until ctx is cancelled.
//
// A failed first rotation is tolerated when the store already holds a secret.
// Otherwise Start returns an error wrapping ErrUninitialized and the caller
// must not serve tokens.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.done != nil {
		return errors.New("rotation scheduler already started")
	}

	if err := s.RotateOnce(ctx); err != nil {
		if _, readErr := s.store.Read(ctx); readErr != nil {
			return fmt.Errorf("%w: initial rotation: %w", ErrUninitialized, err)
		}
		s.logger.Warn("initial rotation failed; keeping stored secret", zap.Error(err))
	}

	s.done = make(chan struct{})
	go s.loop(ctx)
	return nil
}

// Wait blocks until the background loop has exited.
func (s *Scheduler) Wait() {
	if s.done == nil {
		return
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("rotation scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("rotation scheduler stopped")
			return
		case <-ticker.C:
			// Failures are logged inside RotateOnce; the next tick retries.
			_ = s.RotateOnce(ctx)
		}
	}
}

// RotateOnce generates a fresh secret and commits it. On failure the previous
// secret stays current.
func (s *Scheduler) RotateOnce(ctx context.Context) error {
	next, err := s.generate(s.length)
	if err != nil {
		s.metrics.RecordRotation(observability.ResultFailure)
		s.logger.Error("generate secret", zap.Error(err))
		return fmt.Errorf("generate secret: %w", err)
	}

	// A write that has started is allowed to finish during shutdown.
	if err := s.store.Write(context.WithoutCancel(ctx), next); err != nil {
		s.metrics.RecordRotation(observability.ResultFailure)
		s.logger.Error("secret rotation failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRotationIO, err)
	}

	now := time.Now()
	s.rotatedMu.Lock()
	s.rotatedAt = now
	s.rotatedMu.Unlock()

	s.metrics.RecordRotation(observability.ResultSuccess)
	s.logger.Info("secret rotated", zap.Int("length", len(next)), zap.Time("at", now))
	return nil
}

// LastRotation reports when the last successful rotation committed.
func (s *Scheduler) LastRotation() time.Time {
	s.rotatedMu.RLock()
	defer s.rotatedMu.RUnlock()
	return s.rotatedAt
}
