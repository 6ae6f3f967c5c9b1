package session

import (
	"sync"

	"github.com/rzg777/filesearch/core"
)

// InMemoryStore is a volatile core.SessionStore keeping live sessions in a
// process-local map. Sessions are returned by pointer: the Session type is
// itself safe for concurrent access and callers mutate it in place.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create allocates a fresh session under the given ID. Any existing session
// with the same ID is torn down first so its credential does not linger.
func (s *InMemoryStore) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[id]; ok {
		old.Teardown()
	}
	sess := core.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

// Get returns an existing session or a ConfigurationError if the ID is unknown.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &core.ConfigurationError{Op: "session", Reason: "unknown session " + id}
	}
	return sess, nil
}

// Delete tears the session down and removes it. Deleting an unknown ID is a
// no-op.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Teardown()
		delete(s.sessions, id)
	}
	return nil
}
