// Package worker runs background consumers of domain events.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/geo"
	"github.com/spec-kit/auth-service/internal/repository"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// ErrQueueFull is returned when the recorder cannot accept another attempt.
var ErrQueueFull = errors.New("login attempt queue full")

// Locator resolves a client IP into a location.
type Locator interface {
	Locate(ctx context.Context, ip string) domain.Location
}

// LoginRecorder persists login attempts off the request path, enriching each
// with geolocation and parsed user-agent details before it is written.
type LoginRecorder struct {
	attempts repository.LoginAttemptRepository
	locator  Locator
	logger   *zap.Logger
	queue    chan domain.LoginAttempt
	wg       sync.WaitGroup
}

// NewLoginRecorder builds a recorder. queueSize <= 0 uses a default.
func NewLoginRecorder(attempts repository.LoginAttemptRepository, locator Locator, logger *zap.Logger, queueSize int) *LoginRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &LoginRecorder{
		attempts: attempts,
		locator:  locator,
		logger:   logger,
		queue:    make(chan domain.LoginAttempt, queueSize),
	}
}

// RegisterHandlers subscribes the recorder to login events.
func (r *LoginRecorder) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventLoginSucceeded, r.handleLoginEvent)
	dispatcher.Subscribe(events.EventLoginFailed, r.handleLoginEvent)
}

func (r *LoginRecorder) handleLoginEvent(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LoginAttemptPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return r.Enqueue(domain.LoginAttempt{
		ID:        id,
		UserID:    payload.UserID,
		IPAddress: payload.IPAddress,
		UserAgent: payload.UserAgent,
		Success:   event.Type == events.EventLoginSucceeded,
		Timestamp: ts,
	})
}

// Enqueue hands an attempt to the background writer without blocking.
func (r *LoginRecorder) Enqueue(attempt domain.LoginAttempt) error {
	select {
	case r.queue <- attempt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the writer goroutine. Cancelling ctx stops it after the
// queued attempts are flushed.
func (r *LoginRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				r.drain()
				return
			default:
			}

			select {
			case attempt := <-r.queue:
				r.record(ctx, attempt)
			case <-ctx.Done():
				r.drain()
				return
			}
		}
	}()
}

// Wait blocks until the writer goroutine has exited.
func (r *LoginRecorder) Wait() {
	r.wg.Wait()
}

func (r *LoginRecorder) drain() {
	for {
		select {
		case attempt := <-r.queue:
			r.record(context.Background(), attempt)
		default:
			return
		}
	}
}

// record writes one attempt. The write is detached from parent's
// cancellation so an attempt already taken off the queue is not lost to
// shutdown.
func (r *LoginRecorder) record(parent context.Context, attempt domain.LoginAttempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), writeTimeout)
	defer cancel()

	if r.locator != nil {
		attempt.Location = r.locator.Locate(ctx, attempt.IPAddress)
	}
	attempt.DeviceInfo, attempt.BrowserInfo = geo.ParseUserAgent(attempt.UserAgent)

	if err := r.attempts.Create(ctx, &attempt); err != nil {
		r.logger.Error("record login attempt",
			zap.String("attempt_id", attempt.ID),
			zap.Bool("success", attempt.Success),
			zap.Error(err))
		return
	}
	r.logger.Debug("login attempt recorded",
		zap.String("attempt_id", attempt.ID),
		zap.Bool("success", attempt.Success),
		zap.String("location", attempt.Location.Label()),
		zap.String("device", attempt.DeviceInfo))
}
