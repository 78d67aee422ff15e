package devicelock

import (
	"encoding/json"
	"os"
	"sync"
)

// Store binds each employee account to a single physical device. The map
// is persisted as JSON so bindings survive restarts. A different device
// never silently replaces an existing binding.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store persisting to the given file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Bound returns the device bound to a user, or "".
func (s *Store) Bound(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()[userID]
}

// Bind records the device for a user. Returns false when the user is
// already bound to a different device.
func (s *Store) Bind(userID, deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.read()
	if existing, ok := m[userID]; ok && existing != deviceID {
		return false
	}
	m[userID] = deviceID
	s.write(m)
	return true
}

// Unbind releases a user's device binding.
func (s *Store) Unbind(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.read()
	if _, ok := m[userID]; ok {
		delete(m, userID)
		s.write(m)
	}
}

func (s *Store) read() map[string]string {
	m := map[string]string{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return m
	}
	_ = json.Unmarshal(raw, &m)
	return m
}

func (s *Store) write(m map[string]string) {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, raw, 0o644)
}
