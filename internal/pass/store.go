package pass

import "sync"

// Store is a single-slot, last-write-wins holder for the current pass
type Store struct {
	mu    sync.RWMutex
	token string
}

// NewStore creates an empty pass store
func NewStore() *Store {
	return &Store{}
}

// Set replaces the current pass. An empty token clears the store.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the current pass
func (s *Store) Clear() {
	s.Set("")
}

// Get returns the current pass and whether one is held
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Present reports whether a pass is held
func (s *Store) Present() bool {
	_, ok := s.Get()
	return ok
}
