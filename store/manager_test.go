package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/remote"
)

func newFixture() (*Manager, *remote.MockService, *core.Session) {
	svc := remote.NewMockService()
	return NewManager(svc), svc, core.NewSession("test")
}

func TestManager_CreateAppendsToCache(t *testing.T) {
	m, _, sess := newFixture()
	ctx := context.Background()

	st, err := m.Create(ctx, sess, "Finance Docs")
	require.NoError(t, err)
	assert.Equal(t, "Finance Docs", st.DisplayName)
	assert.NotEmpty(t, st.ID)

	stores := sess.Stores()
	require.Len(t, stores, 1)
	assert.Equal(t, st.ID, stores[0].ID)
}

func TestManager_CreateRejectsEmptyName(t *testing.T) {
	m, svc, sess := newFixture()

	_, err := m.Create(context.Background(), sess, "   ")
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, svc.Calls("CreateStore"), "validation must run before any remote call")
}

func TestManager_RefreshReplacesWholesale(t *testing.T) {
	m, _, sess := newFixture()
	ctx := context.Background()

	a, _ := m.Create(ctx, sess, "A")
	b, _ := m.Create(ctx, sess, "B")
	require.NoError(t, m.Delete(ctx, sess, a.ID))

	stores, err := m.Refresh(ctx, sess)
	require.NoError(t, err)
	require.Len(t, stores, 1, "refresh must reflect exactly the surviving set")
	assert.Equal(t, b.ID, stores[0].ID)

	// Idempotence: a second refresh yields the same set.
	again, err := m.Refresh(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, stores, again)
}

func TestManager_DeleteClearsSelection(t *testing.T) {
	m, _, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	require.NoError(t, m.Select(sess, st.ID))

	require.NoError(t, m.Delete(ctx, sess, st.ID))
	_, selected := sess.Selected()
	assert.False(t, selected, "deleting the active store must clear the selection")
	assert.Empty(t, sess.Stores())
}

func TestManager_DeleteUncachedIsConfigurationError(t *testing.T) {
	m, svc, sess := newFixture()

	err := m.Delete(context.Background(), sess, "fileSearchStores/ghost")
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, svc.Calls("DeleteStore"))
}

func TestManager_DeleteStaleReference(t *testing.T) {
	m, svc, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	svc.RemoveStoreDirect(st.ID) // concurrent external deletion

	err := m.Delete(ctx, sess, st.ID)
	require.Error(t, err)
	assert.True(t, core.IsStale(err), "stale delete must be recoverable, got %v", err)
	assert.False(t, sess.HasStore(st.ID), "stale entry must be dropped from the cache")

	stores, err := m.Refresh(ctx, sess)
	require.NoError(t, err)
	for _, s := range stores {
		assert.NotEqual(t, st.ID, s.ID, "refresh must not resurrect the deleted store")
	}
}

func TestManager_RefreshClearsVanishedSelection(t *testing.T) {
	m, svc, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	require.NoError(t, m.Select(sess, st.ID))
	svc.RemoveStoreDirect(st.ID)

	_, err := m.Refresh(ctx, sess)
	require.NoError(t, err)
	_, selected := sess.Selected()
	assert.False(t, selected)
}

func TestManager_SelectUnknownStore(t *testing.T) {
	m, _, sess := newFixture()
	err := m.Select(sess, "fileSearchStores/ghost")
	assert.True(t, core.IsConfiguration(err))
}

func TestManager_FilesListsUploads(t *testing.T) {
	m, svc, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	_, err := svc.UploadFile(ctx, core.UploadRequest{StoreID: st.ID, DisplayName: "report.pdf", Content: []byte("hello")})
	require.NoError(t, err)

	files, err := m.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].DisplayName)
	assert.EqualValues(t, 5, files[0].SizeBytes)
	assert.NotEmpty(t, files[0].ID)
}

func TestManager_DeleteFileRemoves(t *testing.T) {
	m, svc, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	h, err := svc.UploadFile(ctx, core.UploadRequest{StoreID: st.ID, DisplayName: "doc.txt", Content: []byte("x")})
	require.NoError(t, err)

	require.NoError(t, m.DeleteFile(ctx, h.FileID))
	files, err := m.Files(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestManager_DeleteFileStaleReference(t *testing.T) {
	m, svc, sess := newFixture()
	ctx := context.Background()

	st, _ := m.Create(ctx, sess, "A")
	h, _ := svc.UploadFile(ctx, core.UploadRequest{StoreID: st.ID, DisplayName: "doc.txt", Content: []byte("x")})
	svc.RemoveFileDirect(h.FileID) // concurrent external deletion

	err := m.DeleteFile(ctx, h.FileID)
	require.Error(t, err)
	assert.True(t, core.IsStale(err), "stale file delete must be recoverable, got %v", err)
}

func TestManager_DeleteFileRejectsEmptyID(t *testing.T) {
	m, svc, _ := newFixture()

	err := m.DeleteFile(context.Background(), "  ")
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, svc.Calls("DeleteFile"))
}

func TestManager_RemoteErrorPassthrough(t *testing.T) {
	m, svc, sess := newFixture()
	svc.FailNext("ListStores", &core.RemoteError{Op: "list stores", Kind: core.RemoteTimeout, Message: "deadline exceeded"})

	_, err := m.Refresh(context.Background(), sess)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
}
