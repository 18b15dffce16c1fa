// Package session manages bulk edit session lifecycle. Each session owns
// one grid editor and outlives the connection that opened it, so a client
// can reattach after a reconnect.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// ErrNotFound is returned for unknown, expired or idle sessions.
var ErrNotFound = errors.New("session not found")

// Session holds the editor of one bulk edit.
type Session struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`

	mu           sync.Mutex
	lastActiveAt time.Time
	editor       *grid.Editor
	sink         func(grid.Notification)
	pending      []grid.Notification
}

// NewSession creates a session without an editor.
func NewSession(contentType string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		ContentType:  contentType,
		CreatedAt:    now,
		lastActiveAt: now,
	}
}

// Editor returns the session's editor.
func (s *Session) Editor() *grid.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
}

// LastActiveAt returns the last activity timestamp.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt
}

// Notify implements grid.Notifier. Notifications raised while no
// connection is attached are held until the next Attach.
func (s *Session) Notify(n grid.Notification) {
	s.mu.Lock()
	sink := s.sink
	if sink == nil {
		s.pending = append(s.pending, n)
	}
	s.mu.Unlock()
	if sink != nil {
		sink(n)
	}
}

// Attach routes notifications to sink and flushes held ones. A nil sink
// detaches.
func (s *Session) Attach(sink func(grid.Notification)) {
	s.mu.Lock()
	s.sink = sink
	var held []grid.Notification
	if sink != nil {
		held, s.pending = s.pending, nil
	}
	s.lastActiveAt = time.Now()
	s.mu.Unlock()
	for _, n := range held {
		sink(n)
	}
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	return time.Since(s.LastActiveAt()) > timeout
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
	log         *logger.Logger
}

// NewManager creates a session manager with the given timeouts.
func NewManager(maxAge, idleTimeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
		log:         log.With("component", "session"),
	}
}

// Create registers a new session whose editor is built by build. The
// session itself is passed to build as the editor's notifier.
func (m *Manager) Create(contentType string, build func(grid.Notifier) (*grid.Editor, error)) (*Session, error) {
	s := NewSession(contentType)
	ed, err := build(s)
	if err != nil {
		return nil, err
	}
	s.editor = ed
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.log.Debug("session created", "session_id", s.ID, "content_type", contentType)
	return s, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every live session.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}

// Cleanup removes all expired and idle sessions and returns how many were
// removed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.log.Info("expired sessions removed", "count", n, "remaining", m.Len())
			}
		}
	}
}
