// internal/store/memory.go
//
// In-memory registry of live game sessions.
// Sessions hold running controllers (with timers), so they are never
// persisted; only their scores are.
//
// Characteristics:
//   - Sessions keyed by ID in a map, guarded by an RWMutex.
//   - Get refreshes the last-seen time; Sweep closes and drops idle sessions.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/matchgames/internal/game"
)

// ErrNotFound is returned by Get for unknown or evicted sessions.
var ErrNotFound = errors.New("session not found")

// Session is one player's running game.
type Session struct {
	ID         string
	Owner      string // "user:<id>:" or "anon:<id>:"
	Controller *game.Controller
	Daily      string // date key for daily boards, empty otherwise

	lastSeen time.Time
}

// Store defines the registry interface for game sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID and marks it as used.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete closes and removes a session. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Sweep closes and removes sessions idle for longer than ttl and
	// returns how many were removed.
	Sweep(ctx context.Context, ttl time.Duration) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions
	sessions map[string]*Session // keyed by Session.ID
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memory {
	return &memory{sessions: make(map[string]*Session), now: now}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.ID]; ok && old != s {
		old.Controller.Close()
	}
	s.lastSeen = m.now()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen = m.now()
	return s, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Controller.Close()
	}
	return nil
}

func (m *memory) Sweep(ctx context.Context, ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Controller.Close()
	}
	return len(stale)
}
