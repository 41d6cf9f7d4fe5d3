package storage

import (
	"sync"

	"github.com/mcdev12/faceoff/internal/bracket"
	"github.com/mcdev12/faceoff/internal/tournament"
)

// MemoryStore is the default in-process implementation of the persistence
// port. State does not survive a restart, which matches the deployment
// model: a single authoritative process.
type MemoryStore struct {
	mu       sync.RWMutex
	state    *tournament.State
	entrants []bracket.Entrant
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ tournament.Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetState() (*tournament.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), nil
}

func (s *MemoryStore) SetState(state *tournament.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}

func (s *MemoryStore) ClearState() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

func (s *MemoryStore) ListEntrants() ([]bracket.Entrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bracket.Entrant, len(s.entrants))
	copy(out, s.entrants)
	return out, nil
}

func (s *MemoryStore) AddEntrant(e bracket.Entrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entrants {
		if existing.ID == e.ID {
			return nil
		}
	}
	s.entrants = append(s.entrants, e)
	return nil
}

func (s *MemoryStore) RemoveEntrant(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.entrants {
		if existing.ID == id {
			s.entrants = append(s.entrants[:i], s.entrants[i+1:]...)
			return nil
		}
	}
	return nil
}
