package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
)

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
}

// Manager maps store actions onto remote service calls and keeps the
// session's cached listing in step with the results.
type Manager struct {
	svc    core.RemoteService
	logger logging.Logger
}

// NewManager creates a store manager over the given remote backend.
func NewManager(svc core.RemoteService, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{svc: svc, logger: opts.Logger}
}

// Create allocates a new store with the given display name and appends it to
// the session cache.
func (m *Manager) Create(ctx context.Context, sess *core.Session, displayName string) (core.Store, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return core.Store{}, &core.ConfigurationError{Op: "create store", Reason: "display name must not be empty"}
	}
	st, err := m.svc.CreateStore(ctx, name)
	if err != nil {
		return core.Store{}, err
	}
	sess.AddStore(st)
	m.logger.Info("store created", "store_id", st.ID)
	return st, nil
}

// Refresh fetches the full store listing and replaces the session cache
// wholesale. If the active selection vanished remotely it is cleared.
func (m *Manager) Refresh(ctx context.Context, sess *core.Session) ([]core.Store, error) {
	stores, err := m.svc.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	sess.SetStores(stores)
	return stores, nil
}

// Delete removes a store remotely and from the cache, clearing the selection
// if it referenced the store. The store must be present in the cache. When the
// remote service no longer knows the id (concurrent external deletion) the
// cache entry is dropped anyway and a StaleReferenceError is returned; callers
// should treat it as recoverable and refresh.
func (m *Manager) Delete(ctx context.Context, sess *core.Session, id string) error {
	if !sess.HasStore(id) {
		return &core.ConfigurationError{Op: "delete store", Reason: "store not in session cache: " + id}
	}
	err := m.svc.DeleteStore(ctx, id)
	var re *core.RemoteError
	if errors.As(err, &re) && re.Kind == core.RemoteNotFound {
		sess.RemoveStore(id)
		m.logger.Warn("store already gone remotely", "store_id", id)
		return &core.StaleReferenceError{Resource: "store", ID: id}
	}
	if err != nil {
		return err
	}
	sess.RemoveStore(id)
	m.logger.Info("store deleted", "store_id", id)
	return nil
}

// Files lists every uploaded document on the remote service. Listing is
// global, not scoped to the selected store.
func (m *Manager) Files(ctx context.Context) ([]core.FileInfo, error) {
	return m.svc.ListFiles(ctx)
}

// DeleteFile removes one uploaded document by its resource name. When the
// remote service no longer knows the id a StaleReferenceError is returned;
// callers should treat it as recoverable and re-list.
func (m *Manager) DeleteFile(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &core.ConfigurationError{Op: "delete file", Reason: "file id must not be empty"}
	}
	err := m.svc.DeleteFile(ctx, id)
	var re *core.RemoteError
	if errors.As(err, &re) && re.Kind == core.RemoteNotFound {
		m.logger.Warn("file already gone remotely", "file_id", id)
		return &core.StaleReferenceError{Resource: "file", ID: id}
	}
	if err != nil {
		return err
	}
	m.logger.Info("file deleted", "file_id", id)
	return nil
}

// Select marks a cached store as the session's active store.
func (m *Manager) Select(sess *core.Session, id string) error {
	if !sess.Select(id) {
		return &core.ConfigurationError{Op: "select store", Reason: "store not in session cache: " + id}
	}
	return nil
}
