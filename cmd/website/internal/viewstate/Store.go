package viewstate

import (
	"sync"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

/*
Store keeps one HomeState per signed in user for the life of the
process. The state is dropped on logout, or once it sits idle after
the user's auth session has expired.
*/
type Store struct {
	mu     sync.RWMutex
	states map[uint]*models.HomeState
}

func NewStore() *Store {
	return &Store{
		states: make(map[uint]*models.HomeState),
	}
}

// Get returns the user's state, creating an empty one on first use.
func (s *Store) Get(userID uint) *models.HomeState {
	s.mu.RLock()
	state, ok := s.states[userID]
	s.mu.RUnlock()

	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok = s.states[userID]; ok {
		return state
	}

	state = models.NewHomeState()
	s.states[userID] = state
	return state
}

func (s *Store) Delete(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}

// PruneIdle drops states idle since cutoff unless keep reports the user should be kept.
func (s *Store) PruneIdle(cutoff time.Time, keep func(userID uint) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for userID, state := range s.states {
		if keep != nil && keep(userID) {
			continue
		}

		if state.IdleSince(cutoff) {
			delete(s.states, userID)
			removed++
		}
	}

	return removed
}
