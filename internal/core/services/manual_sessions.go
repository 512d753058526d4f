package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// manualSessionTTL is how long a manual sign-in challenge stays valid.
const manualSessionTTL = 10 * time.Minute

// manualSessions is the in-memory registry of pending manual sign-ins.
// Sessions are never persisted; a restart forces the flow to start over.
type manualSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.ManualAuthSession
}

func newManualSessions() *manualSessions {
	return &manualSessions{sessions: make(map[string]*domain.ManualAuthSession)}
}

func (m *manualSessions) put(s *domain.ManualAuthSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
}

// take removes and returns a session, so a session can be used at most once.
func (m *manualSessions) take(id string) (*domain.ManualAuthSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	return s, ok
}

// sweep drops every session expired at now and returns how many were dropped.
func (m *manualSessions) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *manualSessions) removeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.sessions)
}

func (m *manualSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
