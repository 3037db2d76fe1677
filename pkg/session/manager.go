package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/cjsstech/changi-dr-agent/internal/logging"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to per-session conversation contexts. It uses
// reference counting to garbage collect unused locks, so the lock map never
// grows with the number of sessions ever seen.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking, for deployments where several
// replicas serve the same session store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after
// unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Load retrieves an existing session's conversation context.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	var sc *domain.ConversationContext
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		sc, err = m.store.Load(ctx, sessionID)
		return err
	})
	return sc, err
}

// LoadOrStart loads a session's context, initializing an empty one on first
// use. The empty context is persisted immediately to reserve the id.
func (m *Manager) LoadOrStart(ctx context.Context, sessionID string) (*domain.ConversationContext, error) {
	var sc *domain.ConversationContext
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		sc, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}

		if err != domain.ErrSessionNotFound {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		sc = domain.NewConversationContext()
		if err := m.store.Save(ctx, sessionID, sc); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return sc, err
}

// Save persists the session's conversation context.
func (m *Manager) Save(ctx context.Context, sessionID string, sc *domain.ConversationContext) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, sc)
	})
}

// RecordTurn appends one completed exchange to the session under its lock:
// the user message, the run's new assistant messages, and the metadata the
// run accumulated. Unknown sessions are created on first turn.
func (m *Manager) RecordTurn(ctx context.Context, sessionID, userMessage string, result *domain.ExecutionResult) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sc, err := m.store.Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			sc = domain.NewConversationContext()
		} else if err != nil {
			return err
		}

		prior := len(sc.History)
		sc.History = append(sc.History, domain.UserMessage(userMessage))
		// Result messages repeat the history the run started from; only
		// the tail past that point is new.
		if len(result.Messages) > prior {
			sc.History = append(sc.History, result.Messages[prior:]...)
		}
		if sc.Metadata == nil {
			sc.Metadata = make(map[string]any, len(result.Metadata))
		}
		for k, v := range result.Metadata {
			sc.Metadata[k] = v
		}

		return m.store.Save(ctx, sessionID, sc)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
