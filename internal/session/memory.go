package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps all sessions in process memory. One mutex guards every
// operation; that is enough for the interleaved-call model — there is no
// per-id locking and no cross-call transaction.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string

	now func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// ensureLocked inserts an empty session if absent and returns it.
// Callers must hold mu.
func (m *MemoryStore) ensureLocked(id string) *Session {
	if s, ok := m.sessions[id]; ok {
		s.LastAccessedAt = m.now()
		return s
	}
	now := m.now()
	s := &Session{ID: id, CreatedAt: now, LastAccessedAt: now}
	m.sessions[id] = s
	m.order = append(m.order, id)
	return s
}

func (m *MemoryStore) Create() (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(id)
	return id, nil
}

func (m *MemoryStore) Ensure(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(id)
	return nil
}

func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	s.LastAccessedAt = m.now()
	cp := *s
	cp.Turns = append([]ConversationTurn(nil), s.Turns...)
	return &cp, nil
}

func (m *MemoryStore) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s.Turns = nil
	s.NativeID = ""
	s.LastAccessedAt = m.now()
	return nil
}

func (m *MemoryStore) AddTurn(id string, turn ConversationTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensureLocked(id)
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}
	s.Turns = append(s.Turns, turn)
	return nil
}

func (m *MemoryStore) SetNativeID(id, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.ensureLocked(id)
	s.NativeID = handle
	return nil
}

func (m *MemoryStore) NativeID(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", nil
	}
	return s.NativeID, nil
}

func (m *MemoryStore) List() ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Summary, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		out = append(out, Summary{
			ID:             s.ID,
			CreatedAt:      s.CreatedAt,
			LastAccessedAt: s.LastAccessedAt,
			TurnCount:      len(s.Turns),
		})
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
