package session

import (
	"context"
	"sync"
	"time"

	"github.com/defectscope/defectscope/internal/domain"
	domsession "github.com/defectscope/defectscope/internal/domain/session"
	"github.com/defectscope/defectscope/internal/metrics"
)

type memoryEntry struct {
	session   *domsession.Session
	expiresAt time.Time
}

// Memory keeps sessions in process with the same sliding TTL as Repo.
// Expired sessions are dropped lazily on access and on every Save.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates an in-memory session store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{sessions: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Save stores or replaces a session.
func (m *Memory) Save(_ context.Context, s *domsession.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, id)
		}
	}
	m.sessions[s.ID] = memoryEntry{session: s, expiresAt: now.Add(m.ttl)}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return nil
}

// Get returns a live session and extends its TTL.
func (m *Memory) Get(_ context.Context, id string) (*domsession.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	now := m.now()
	if !now.Before(e.expiresAt) {
		delete(m.sessions, id)
		metrics.SessionsActive.Set(float64(len(m.sessions)))
		return nil, domain.ErrSessionNotFound
	}
	e.expiresAt = now.Add(m.ttl)
	m.sessions[id] = e
	return e.session, nil
}

// Delete removes a session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	return nil
}
