package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/google/uuid"
)

// Manager is the registry of live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
	log      *logger.Logger
	newID    func() string
	now      func() time.Time
}

func NewManager(factory Factory, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		log:      log,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Start opens a session for token. A token that is already expired is refused.
func (m *Manager) Start(token string) (*Session, error) {
	creds := NewCredentials(token)
	if _, err := creds.Token(); err != nil {
		return nil, err
	}

	id := m.newID()
	s, err := m.factory(id, creds)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.ID = id
	s.StartedAt = m.now()
	if s.log == nil {
		s.log = m.log.With("session_id", id)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Info("session started", "session_id", id)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// End forgets the session. A submission still in flight runs to completion.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	m.log.Info("session ended", "session_id", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ConfirmOrder routes an order confirmation from the event stream to the
// session whose checkout carries idempotencyKey.
func (m *Manager) ConfirmOrder(idempotencyKey string, conf domain.OrderConfirmation) bool {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if s.Checkout.ApplyConfirmation(idempotencyKey, conf) {
			m.log.Info("order confirmation applied", "session_id", s.ID, "idempotency_key", idempotencyKey, "order_id", conf.OrderID)
			return true
		}
	}
	return false
}

// Close waits for every in-flight submission so no outcome is lost on shutdown.
func (m *Manager) Close() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Checkout.Wait()
	}
}
