package core

import (
	"sync"
	"time"
)

// Session holds one operator's process-local state: the credential, the store
// cache and selection, the upload queue, the chat transcript and the active
// model. It is safe for concurrent access, though each session is assumed to
// have a single writer per concern (one rendering surface at a time).
//
// Contract:
//   - At most one store is selected at a time; selection must reference a
//     cached store.
//   - The transcript is append-only within the session and cleared only by
//     ResetTranscript or Teardown.
//   - Upload tasks stay queued until they reach a terminal status.
//   - Teardown zeroes the credential; nothing survives the session.
type Session struct {
	ID      string
	Created time.Time

	mu         sync.RWMutex
	updated    time.Time
	credential []byte
	model      string
	stores     []Store
	selected   string
	tasks      []*UploadTask
	transcript []ChatMessage
	asking     bool
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Created: now, updated: now}
}

// Updated returns the time of the last state mutation.
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

func (s *Session) touchLocked() { s.updated = time.Now().UTC() }

// SetCredential stores a copy of the bearer secret for the session's lifetime.
// The credential is never written to disk or logs.
func (s *Session) SetCredential(credential []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.credential)
	s.credential = append([]byte(nil), credential...)
	s.touchLocked()
}

// Credential returns a copy of the session credential.
func (s *Session) Credential() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.credential...)
}

// SetModel sets the model used by subsequent asks. Prior transcript entries
// are never rewritten.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.touchLocked()
}

// Model returns the model identifier for the next ask.
func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetStores replaces the store cache wholesale with the remote listing. If the
// selected store is no longer present the selection is cleared.
func (s *Session) SetStores(stores []Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = append([]Store(nil), stores...)
	if s.selected != "" && !containsStore(s.stores, s.selected) {
		s.selected = ""
	}
	s.touchLocked()
}

// Stores returns a copy of the cached store listing.
func (s *Session) Stores() []Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Store(nil), s.stores...)
}

// AddStore appends a newly created store to the cache.
func (s *Session) AddStore(st Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = append(s.stores, st)
	s.touchLocked()
}

// RemoveStore drops a store from the cache, clearing the selection if it
// referenced the removed store. It reports whether the store was cached.
func (s *Session) RemoveStore(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.stores {
		if st.ID == id {
			s.stores = append(s.stores[:i], s.stores[i+1:]...)
			if s.selected == id {
				s.selected = ""
			}
			s.touchLocked()
			return true
		}
	}
	return false
}

// HasStore reports whether the store is present in the session cache.
func (s *Session) HasStore(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return containsStore(s.stores, id)
}

// Select marks a cached store as the active selection. It reports false if the
// store is not in the cache.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !containsStore(s.stores, id) {
		return false
	}
	s.selected = id
	s.touchLocked()
	return true
}

// ClearSelection drops the active store selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.touchLocked()
}

// Selected returns the active store and whether one is selected.
func (s *Session) Selected() (Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stores {
		if st.ID == s.selected {
			return st, true
		}
	}
	return Store{}, false
}

// EnqueueTask adds an upload task to the session queue.
func (s *Session) EnqueueTask(task UploadTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := task
	s.tasks = append(s.tasks, &t)
	s.touchLocked()
}

// Task returns a snapshot of the task with the given ID.
func (s *Session) Task(id string) (UploadTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return *t, true
		}
	}
	return UploadTask{}, false
}

// Tasks returns snapshots of all queued tasks in submission order.
func (s *Session) Tasks() []UploadTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UploadTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// AdvanceTask applies the upload state machine to the task given a freshly
// observed remote status and returns the resulting status. Terminal statuses
// are sticky.
func (s *Session) AdvanceTask(id string, observed UploadStatus) (UploadStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			next := Advance(t.Status, observed)
			if next != t.Status {
				t.Status = next
				t.Updated = time.Now().UTC()
				s.touchLocked()
			}
			return t.Status, true
		}
	}
	return UploadPending, false
}

// AppendMessage adds a message to the transcript. The transcript is
// append-only; nothing is ever overwritten.
func (s *Session) AppendMessage(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msg)
	s.touchLocked()
}

// Transcript returns a copy of the chat transcript in append order.
func (s *Session) Transcript() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ChatMessage(nil), s.transcript...)
}

// ResetTranscript clears the chat transcript. Stores, selection and uploads
// are unaffected.
func (s *Session) ResetTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.touchLocked()
}

// BeginAsk acquires the in-flight guard. Concurrent asks within one session
// are disallowed by contract; callers must serialize. It reports false when
// another ask is already in flight.
func (s *Session) BeginAsk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asking {
		return false
	}
	s.asking = true
	return true
}

// EndAsk releases the in-flight guard.
func (s *Session) EndAsk() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asking = false
}

// Teardown zeroes the credential and clears all session state. The session
// must not be used afterwards.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.credential)
	s.credential = nil
	s.stores = nil
	s.selected = ""
	s.tasks = nil
	s.transcript = nil
	s.model = ""
	s.asking = false
	s.touchLocked()
}

func containsStore(stores []Store, id string) bool {
	for _, st := range stores {
		if st.ID == id {
			return true
		}
	}
	return false
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SessionStore manages session lifecycles. Sessions are process-local and
// never shared across operators.
type SessionStore interface {
	// Create allocates a fresh session with the given ID, replacing any
	// previous session under the same ID.
	Create(id string) (*Session, error)

	// Get returns an existing session.
	Get(id string) (*Session, error)

	// Delete tears the session down and removes it from the store.
	Delete(id string) error
}
