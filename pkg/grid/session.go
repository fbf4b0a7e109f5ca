package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/httpx"
)

// DefaultReadyTimeout bounds how long Connect waits for the grid.
const DefaultReadyTimeout = 30 * time.Second

// SessionHeader carries the session id on every HTTP backend request.
const SessionHeader = "X-Grid-Session"

type options struct {
	logger       *zap.Logger
	readyTimeout time.Duration
	retryPolicy  *httpx.RetryPolicy
	sessionID    uuid.UUID
}

// Option configures Connect and Dial.
type Option func(*options)

// WithLogger sets the logger used by the session and its backend.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReadyTimeout overrides DefaultReadyTimeout. Non-positive values keep
// the default.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.readyTimeout = d
		}
	}
}

// WithRetryPolicy overrides the HTTP backend retry policy used by Dial.
func WithRetryPolicy(policy httpx.RetryPolicy) Option {
	return func(o *options) {
		o.retryPolicy = &policy
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:       zap.NewNop(),
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == uuid.Nil {
		o.sessionID = uuid.New()
	}
	return o
}

// Session is an established connection to the grid. It is safe for
// concurrent use; map handles obtained from it share its backend.
type Session struct {
	id      uuid.UUID
	backend Backend
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Dial connects to a grid proxy at address (host:port or URL) over HTTP.
func Dial(ctx context.Context, address string, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	backend, err := newHTTPBackend(address, o)
	if err != nil {
		return nil, err
	}
	// the backend already carries the session id header
	connectOpts := append(append([]Option(nil), opts...), withSessionID(o.sessionID))
	return Connect(ctx, backend, connectOpts...)
}

func withSessionID(id uuid.UUID) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// Connect waits until backend answers Ping and returns a Session over it.
// The backend is closed if the grid does not become ready.
func Connect(ctx context.Context, backend Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, errors.New("grid: backend is nil")
	}
	o := buildOptions(opts)

	s := &Session{
		id:      o.sessionID,
		backend: backend,
		logger:  o.logger.With(zap.String("session", o.sessionID.String())),
	}

	start := time.Now()
	if err := s.waitReady(ctx, o.readyTimeout); err != nil {
		_ = backend.Close()
		return nil, err
	}

	s.logger.Info("session connected",
		zap.String("backend", describe(backend)),
		zap.Duration("elapsed", time.Since(start)))
	return s, nil
}

func (s *Session) waitReady(ctx context.Context, timeout time.Duration) error {
	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := httpx.NewBackoff(100*time.Millisecond, 2*time.Second, 0.2)
	for attempt := 0; ; attempt++ {
		err := s.backend.Ping(readyCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := backoff.ForAttempt(attempt)
		s.logger.Debug("grid not ready", zap.Int("attempt", attempt+1), zap.Duration("retry_in", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-readyCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s: %v", ErrNotReady, timeout, err)
		case <-timer.C:
		}
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id.String()
}

// Ping checks once that the grid answers.
func (s *Session) Ping(ctx context.Context) error {
	backend, err := s.active()
	if err != nil {
		return err
	}
	return backend.Ping(ctx)
}

// Close releases the backend. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("session closed")
	return s.backend.Close()
}

func (s *Session) active() (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.backend, nil
}

func describe(b Backend) string {
	if st, ok := b.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", b)
}
