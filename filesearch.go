// Package filesearch provides a high-level façade over the core managers
// (stores, uploads, grounded chat & sessions) for driving a remote document
// search service. Most applications interact with this package by:
//  1. Creating a Studio via New() (supplying a remote backend or factory)
//  2. Opening a session with a credential (OpenSession validates it remotely)
//  3. Creating/selecting stores, uploading files, and asking grounded questions
//
// The façade delegates the actual work to the store, upload, and chat packages
// while keeping setup and usage ergonomics concise. Credentials live only
// inside the session for its lifetime and are zeroed when the session closes.
package filesearch

import (
	"context"
	"sync"
	"time"

	"github.com/rzg777/filesearch/chat"
	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
	"github.com/rzg777/filesearch/session"
	"github.com/rzg777/filesearch/store"
	"github.com/rzg777/filesearch/upload"
)

// DefaultModel is used for grounded answers when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultChunking is applied to uploads that leave the chunking config unset.
var DefaultChunking = core.ChunkingConfig{MaxTokensPerChunk: 200, OverlapTokens: 20}

// Options configures the Studio instance.
type Options struct {
	// Remote is a shared backend used for every session. Ignored when
	// RemoteFactory is set.
	Remote core.RemoteService

	// RemoteFactory builds a backend from a session's credential, letting
	// each session talk to the service as its own principal. The factory
	// must not retain the credential slice.
	RemoteFactory func(credential []byte) (core.RemoteService, error)

	// Sessions (defaults to the in-memory implementation if not provided)
	Sessions core.SessionStore

	// DefaultModel seeds each new session's active model.
	DefaultModel string

	// DefaultChunking is applied to uploads with an unset chunking config.
	DefaultChunking core.ChunkingConfig

	// PollInterval is the cadence WaitForUpload polls at.
	PollInterval time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Studio is the high-level façade aggregating the managers and session store.
type Studio struct {
	opts     Options
	sessions core.SessionStore
	logger   logging.Logger

	mu       sync.RWMutex
	runtimes map[string]*runtime
}

// runtime binds one session to its backend and the managers driving it.
type runtime struct {
	remote  core.RemoteService
	stores  *store.Manager
	uploads *upload.Coordinator
	chat    *chat.Orchestrator
}

// AskOption tunes a single Ask call.
type AskOption = func(o *chat.AskOptions)

// WithModel overrides the session's model for one ask.
var WithModel = chat.WithModel

// WithMetadataFilter scopes one ask to files matching the filter expression,
// e.g. "category = 'finance'".
var WithMetadataFilter = chat.WithMetadataFilter

// New creates a new Studio instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Studio {
	opts := Options{
		Sessions:        session.NewInMemoryStore(),
		DefaultModel:    DefaultModel,
		DefaultChunking: DefaultChunking,
		PollInterval:    2 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Studio{
		opts:     opts,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		runtimes: make(map[string]*runtime),
	}
}

// OpenSession creates a session holding the credential, builds its backend and
// validates the credential with an initial store listing. On validation
// failure the session is torn down again so the credential does not linger.
// The returned ID addresses the session in every other Studio call.
func (s *Studio) OpenSession(ctx context.Context, credential []byte) (string, error) {
	if len(credential) == 0 {
		return "", &core.ConfigurationError{Op: "open session", Reason: "credential must not be empty"}
	}

	remote := s.opts.Remote
	if s.opts.RemoteFactory != nil {
		var err error
		remote, err = s.opts.RemoteFactory(credential)
		if err != nil {
			return "", err
		}
	}
	if remote == nil {
		return "", &core.ConfigurationError{Op: "open session", Reason: "no remote backend configured"}
	}

	id := core.NewID()
	sess, err := s.sessions.Create(id)
	if err != nil {
		return "", err
	}
	sess.SetCredential(credential)
	sess.SetModel(s.opts.DefaultModel)

	rt := &runtime{
		remote:  remote,
		stores:  store.NewManager(remote, func(o *store.Options) { o.Logger = s.logger }),
		uploads: upload.NewCoordinator(remote, func(o *upload.Options) { o.Logger = s.logger }),
		chat:    chat.NewOrchestrator(remote, func(o *chat.Options) { o.Logger = s.logger }),
	}

	if _, err := rt.stores.Refresh(ctx, sess); err != nil {
		_ = s.sessions.Delete(id)
		return "", err
	}

	s.mu.Lock()
	s.runtimes[id] = rt
	s.mu.Unlock()
	s.logger.Info("session opened", "session_id", id)
	return id, nil
}

// CloseSession tears the session down, zeroing its credential and dropping all
// cached state. Closing an unknown session is a no-op.
func (s *Studio) CloseSession(sessionID string) error {
	s.mu.Lock()
	delete(s.runtimes, sessionID)
	s.mu.Unlock()
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.logger.Info("session closed", "session_id", sessionID)
	return nil
}

// runtime resolves a session ID to its session and bound managers.
func (s *Studio) runtime(sessionID string) (*runtime, *core.Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	rt, ok := s.runtimes[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, &core.ConfigurationError{Op: "session", Reason: "session has no backend: " + sessionID}
	}
	return rt, sess, nil
}

// CreateStore allocates a new store and adds it to the session cache.
func (s *Studio) CreateStore(ctx context.Context, sessionID, displayName string) (core.Store, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.Store{}, err
	}
	return rt.stores.Create(ctx, sess, displayName)
}

// RefreshStores refetches the store listing, replacing the session cache.
func (s *Studio) RefreshStores(ctx context.Context, sessionID string) ([]core.Store, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.stores.Refresh(ctx, sess)
}

// Stores returns the session's cached store listing without a remote call.
func (s *Studio) Stores(sessionID string) ([]core.Store, error) {
	_, sess, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Stores(), nil
}

// DeleteStore removes a store remotely and from the session cache.
func (s *Studio) DeleteStore(ctx context.Context, sessionID, storeID string) error {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return rt.stores.Delete(ctx, sess, storeID)
}

// SelectStore marks a cached store as the session's active store.
func (s *Studio) SelectStore(sessionID, storeID string) error {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return rt.stores.Select(sess, storeID)
}

// SelectedStore reports the session's active store, if any.
func (s *Studio) SelectedStore(sessionID string) (core.Store, bool, error) {
	_, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.Store{}, false, err
	}
	st, ok := sess.Selected()
	return st, ok, nil
}

// Files lists every uploaded document on the remote service. The listing is
// global across stores.
func (s *Studio) Files(ctx context.Context, sessionID string) ([]core.FileInfo, error) {
	rt, _, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.stores.Files(ctx)
}

// DeleteFile removes one uploaded document by its resource name.
func (s *Studio) DeleteFile(ctx context.Context, sessionID, fileID string) error {
	rt, _, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return rt.stores.DeleteFile(ctx, fileID)
}

// Upload submits a file for ingestion into a store (the active store when
// req.StoreID is empty) and returns the queued task. An unset chunking config
// falls back to the studio default.
func (s *Studio) Upload(ctx context.Context, sessionID string, req core.UploadRequest) (core.UploadTask, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.UploadTask{}, err
	}
	if req.Chunking == (core.ChunkingConfig{}) {
		req.Chunking = s.opts.DefaultChunking
	}
	return rt.uploads.Submit(ctx, sess, req)
}

// PollUpload observes the task's processing state once.
func (s *Studio) PollUpload(ctx context.Context, sessionID, taskID string) (core.UploadStatus, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.UploadPending, err
	}
	return rt.uploads.Poll(ctx, sess, taskID)
}

// WaitForUpload polls the task at the studio's interval until it reaches a
// terminal status or ctx expires. Only retryable remote failures are retried
// on the next tick; everything else (stale handle, unknown task, a
// non-retryable remote error such as a revoked credential) ends the wait
// immediately.
func (s *Studio) WaitForUpload(ctx context.Context, sessionID, taskID string) (core.UploadStatus, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.UploadPending, err
	}
	status, err := rt.uploads.Poll(ctx, sess, taskID)
	if err != nil && !core.IsRetryable(err) {
		return status, err
	}
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for !status.Terminal() {
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
		status, err = rt.uploads.Poll(ctx, sess, taskID)
		if err != nil && !core.IsRetryable(err) {
			return status, err
		}
	}
	return status, nil
}

// Tasks returns snapshots of the session's upload queue.
func (s *Studio) Tasks(sessionID string) ([]core.UploadTask, error) {
	_, sess, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Tasks(), nil
}

// Ask sends a grounded question scoped to the session's active store and
// returns the assistant message with its citations.
func (s *Studio) Ask(ctx context.Context, sessionID, question string, optFns ...AskOption) (core.ChatMessage, error) {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return core.ChatMessage{}, err
	}
	return rt.chat.Ask(ctx, sess, question, optFns...)
}

// SetModel switches the session's active model for subsequent asks.
func (s *Studio) SetModel(sessionID, model string) error {
	_, sess, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	if model == "" {
		return &core.ConfigurationError{Op: "set model", Reason: "model must not be empty"}
	}
	sess.SetModel(model)
	return nil
}

// Transcript returns a snapshot of the session's chat history.
func (s *Studio) Transcript(sessionID string) ([]core.ChatMessage, error) {
	_, sess, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Transcript(), nil
}

// ClearTranscript drops the session's chat history, keeping stores, selection
// and upload queue intact.
func (s *Studio) ClearTranscript(sessionID string) error {
	rt, sess, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	rt.chat.Reset(sess)
	return nil
}
