// Package session owns the single shared backend session used by every crawl in a process.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/browser"
)

// Factory starts a new backend.
type Factory func(ctx context.Context) (browser.Driver, error)

// Session is one live backend.
type Session struct {
	ID        string
	Driver    browser.Driver
	CreatedAt time.Time
}

// Manager lazily creates a session and hands the same one to every caller
// until it is released.
type Manager struct {
	factory Factory
	logger  *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[Session]
}

// NewManager creates a manager that builds sessions with factory.
func NewManager(factory Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{factory: factory, logger: logger}
}

// Acquire returns the live session, creating it on first use.
// Concurrent callers racing on an empty manager share one factory call.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.current.Load(); s != nil {
		return s, nil
	}

	driver, err := m.factory(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		Driver:    driver,
		CreatedAt: time.Now(),
	}
	m.current.Store(s)
	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("backend", driver.Name()))
	return s, nil
}

// Current returns the live session without creating one.
func (m *Manager) Current() *Session {
	return m.current.Load()
}

// Release clears s if it is still current and closes it, so the next
// Acquire starts fresh. Close failures are logged, not returned.
func (m *Manager) Release(s *Session) {
	if s == nil {
		return
	}

	m.mu.Lock()
	swapped := m.current.CompareAndSwap(s, nil)
	m.mu.Unlock()

	if !swapped {
		// Another caller already released it.
		return
	}

	if err := s.Driver.Close(); err != nil {
		m.logger.Warn("failed to close session",
			zap.String("session_id", s.ID),
			zap.Error(err))
		return
	}
	m.logger.Info("session released",
		zap.String("session_id", s.ID),
		zap.Duration("age", time.Since(s.CreatedAt)))
}

// Close releases the current session, if any.
func (m *Manager) Close() {
	m.Release(m.current.Load())
}
