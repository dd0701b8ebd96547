package session

import (
	"context"
	"fmt"
	"sync"

	errx "github.com/wiresense/server/internal/core/error"
)

// Store persists sessions. Load returns an errx.CodeNotFound error for an
// unknown id. Save writes s only if the stored version still equals
// expectedVersion (0 for a session never saved) and returns an
// errx.CodeConflict error otherwise.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, expectedVersion int64) error
}

// MemoryStore keeps sessions in process memory. Sessions do not survive a
// restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errx.NotFound("session %s not found", id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stored int64
	if cur, ok := m.sessions[s.ID]; ok {
		stored = cur.Version
	}
	if stored != expectedVersion {
		return errx.Conflict(fmt.Errorf("session %s at version %d, expected %d", s.ID, stored, expectedVersion), "session was updated concurrently")
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

var _ Store = (*MemoryStore)(nil)
