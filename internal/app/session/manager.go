// Package session provides the registry of player sessions, one per browser or client.
package session

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podplay/internal/app/notification"
	"github.com/osa030/podplay/internal/app/player"
)

var ErrInvalidSession = errors.New("invalid session")

// Config holds registry configuration.
type Config struct {
	IdleTimeout time.Duration     // Sessions unused for longer are expired; 0 disables expiry
	Randomizer  player.Randomizer // Passed to every new player; nil uses the default
	Now         func() time.Time  // Clock, defaults to time.Now
}

// Session is one player plus the subscribers observing it.
type Session struct {
	ID            string
	Player        *player.Player
	Notifications *notification.Manager
	CreatedAt     time.Time

	lastSeen time.Time // guarded by Manager.mu
}

// Manager keeps player sessions by ID with thread-safe access.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   Config
}

// NewManager creates an empty session registry.
func NewManager(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		config:   cfg,
	}
}

// Open returns the session with the given ID, or creates a new one with an
// empty player when the ID is empty or unknown. The bool reports creation.
func (m *Manager) Open(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.config.Now()
	if s, ok := m.sessions[id]; ok && id != "" {
		s.lastSeen = now
		return s, false
	}

	id = uuid.New().String()
	s := &Session{
		ID: id,
		Player: player.New(player.Config{
			ID:         id,
			Randomizer: m.config.Randomizer,
		}),
		Notifications: notification.NewManager(),
		CreatedAt:     now,
		lastSeen:      now,
	}
	s.Player.OnChange(func(e player.Event) {
		s.Notifications.Broadcast(&notification.Notification{
			Type:      notification.TypeStateChanged,
			SessionID: id,
			Event:     e.Type.String(),
			Snapshot:  e.Snapshot,
		})
	})
	m.sessions[id] = s

	zlog.Info().Msgf("session opened: id=%s sessions=%d", id, len(m.sessions))
	return s, true
}

// Get returns an existing session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSession, "session %q", id)
	}
	s.lastSeen = m.config.Now()
	return s, nil
}

// Touch marks a session as used.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrInvalidSession
	}
	s.lastSeen = m.config.Now()
	return nil
}

// Validate checks that a session exists without touching it.
func (m *Manager) Validate(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrInvalidSession
	}
	return nil
}

// Close ends a session: its queue is cleared, subscribers are dropped and the
// session is forgotten.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrInvalidSession
	}
	m.end(s)
	return nil
}

// ExpireIdle closes every session that has not been used for longer than the
// configured idle timeout and returns how many were closed. Sessions with a
// live subscriber are never idle.
func (m *Manager) ExpireIdle() int {
	if m.config.IdleTimeout <= 0 {
		return 0
	}

	now := m.config.Now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Notifications.SubscriberCount() > 0 {
			s.lastSeen = now
			continue
		}
		if now.Sub(s.lastSeen) > m.config.IdleTimeout {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.end(s)
	}
	if len(expired) > 0 {
		zlog.Info().Msgf("expired idle sessions: count=%d", len(expired))
	}
	return len(expired)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.end(s)
	}
}

func (m *Manager) end(s *Session) {
	s.Player.ClearPlayingState()
	s.Notifications.Close()
	zlog.Info().Msgf("session closed: id=%s", s.ID)
}
