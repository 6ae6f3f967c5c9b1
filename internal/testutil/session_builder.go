package testutil

import (
	"github.com/rzg777/filesearch/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Model("gemini-2.5-flash").Stores(st).Selected(st.ID).Build()
type SessionBuilder struct {
	id       string
	model    string
	stores   []core.Store
	selected string
	tasks    []core.UploadTask
	messages []core.ChatMessage
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (Model, Stores, Selected, Task, Message) then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// Model sets the session's active model (chainable).
func (b *SessionBuilder) Model(model string) *SessionBuilder {
	b.model = model
	return b
}

// Stores seeds the session's cached store listing (chainable).
func (b *SessionBuilder) Stores(stores ...core.Store) *SessionBuilder {
	b.stores = append(b.stores, stores...)
	return b
}

// Selected marks a seeded store as the active selection (chainable).
func (b *SessionBuilder) Selected(id string) *SessionBuilder {
	b.selected = id
	return b
}

// Task enqueues an upload task (chainable).
func (b *SessionBuilder) Task(task core.UploadTask) *SessionBuilder {
	b.tasks = append(b.tasks, task)
	return b
}

// Message appends a transcript message (chainable).
func (b *SessionBuilder) Message(msg core.ChatMessage) *SessionBuilder {
	b.messages = append(b.messages, msg)
	return b
}

// Build returns a *core.Session in the configured state.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	if b.model != "" {
		s.SetModel(b.model)
	}
	if len(b.stores) > 0 {
		s.SetStores(b.stores)
	}
	if b.selected != "" {
		s.Select(b.selected)
	}
	for _, task := range b.tasks {
		s.EnqueueTask(task)
	}
	for _, msg := range b.messages {
		s.AppendMessage(msg)
	}
	return s
}
