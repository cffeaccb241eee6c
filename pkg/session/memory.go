package session

import (
	"context"
	"sort"
	"sync"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// MemoryStore keeps sessions and events in process memory. Used by
// tests and the demo walkthrough; state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*contracts.LifecycleSession
	events   map[string][]contracts.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*contracts.LifecycleSession),
		events:   make(map[string][]contracts.Event),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *contracts.LifecycleSession) error {
	if s.ID == "" {
		return fault.ErrInvalidInput.WithMessage("session has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return fault.ErrInvalidState.WithMessagef("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*contracts.LifecycleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fault.ErrNotFound.WithMessagef("session %s", id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *contracts.LifecycleSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fault.ErrNotFound.WithMessagef("session %s", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*contracts.LifecycleSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*contracts.LifecycleSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, e contracts.Event) error {
	if e.SessionID == "" {
		return fault.ErrInvalidInput.WithMessage("event has no session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.events[e.SessionID]
	if want := int64(len(history)) + 1; e.Sequence != want {
		return fault.ErrInvalidState.WithMessagef("session %s: event sequence %d, want %d", e.SessionID, e.Sequence, want)
	}
	m.events[e.SessionID] = append(history, e)
	return nil
}

func (m *MemoryStore) SessionEvents(ctx context.Context, sessionID string) ([]contracts.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]contracts.Event(nil), m.events[sessionID]...), nil
}
