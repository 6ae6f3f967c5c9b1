package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/internal/testutil"
	"github.com/rzg777/filesearch/remote"
)

func newFixture(t *testing.T) (*Coordinator, *remote.MockService, *core.Session, core.Store) {
	t.Helper()
	svc := remote.NewMockService()
	st, err := svc.CreateStore(context.Background(), "Docs")
	require.NoError(t, err)
	sess := testutil.NewSessionBuilder("test").Stores(st).Selected(st.ID).Build()
	return NewCoordinator(svc), svc, sess, st
}

func validRequest(storeID string) core.UploadRequest {
	return core.UploadRequest{
		StoreID:     storeID,
		DisplayName: "report.pdf",
		MIMEType:    "application/pdf",
		Content:     []byte("%PDF-1.7 fake"),
		Metadata:    core.Metadata{{Key: "category", Value: "finance"}},
		Chunking:    core.ChunkingConfig{MaxTokensPerChunk: 800, OverlapTokens: 100},
	}
}

func TestSubmit_CreatesPendingTask(t *testing.T) {
	c, _, sess, st := newFixture(t)

	task, err := c.Submit(context.Background(), sess, validRequest(st.ID))
	require.NoError(t, err)
	assert.Equal(t, core.UploadPending, task.Status)
	assert.Equal(t, st.ID, task.StoreID)
	assert.NotEmpty(t, task.Handle.FileID)

	queued, ok := sess.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, core.UploadPending, queued.Status)
}

func TestSubmit_UsesActiveStoreWhenUnscoped(t *testing.T) {
	c, _, sess, st := newFixture(t)

	req := validRequest("")
	task, err := c.Submit(context.Background(), sess, req)
	require.NoError(t, err)
	assert.Equal(t, st.ID, task.StoreID)

	sess.ClearSelection()
	_, err = c.Submit(context.Background(), sess, validRequest(""))
	assert.True(t, core.IsConfiguration(err), "unscoped submit without selection must fail the precondition")
}

func TestSubmit_ChunkingBoundsNeverReachRemote(t *testing.T) {
	c, svc, sess, st := newFixture(t)

	cases := []core.ChunkingConfig{
		{MaxTokensPerChunk: 0, OverlapTokens: 0},
		{MaxTokensPerChunk: 100, OverlapTokens: 100},
		{MaxTokensPerChunk: 100, OverlapTokens: 150},
		{MaxTokensPerChunk: 100, OverlapTokens: -1},
	}
	for _, cfg := range cases {
		req := validRequest(st.ID)
		req.Chunking = cfg
		_, err := c.Submit(context.Background(), sess, req)
		assert.True(t, core.IsConfiguration(err), "config %+v should fail locally", cfg)
	}
	assert.Zero(t, svc.Calls("UploadFile"), "invalid chunking must never reach the remote service")
}

func TestSubmit_DuplicateMetadataKeys(t *testing.T) {
	c, svc, sess, st := newFixture(t)

	req := validRequest(st.ID)
	req.Metadata = core.Metadata{{Key: "category", Value: "a"}, {Key: "category", Value: "b"}}
	_, err := c.Submit(context.Background(), sess, req)
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, svc.Calls("UploadFile"))
}

func TestSubmit_EmptyContent(t *testing.T) {
	c, svc, sess, st := newFixture(t)

	req := validRequest(st.ID)
	req.Content = nil
	_, err := c.Submit(context.Background(), sess, req)
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, svc.Calls("UploadFile"))
}

func TestPoll_AdvancesToActive(t *testing.T) {
	c, svc, sess, st := newFixture(t)
	svc.ScriptStatuses("report.pdf", core.UploadProcessing, core.UploadProcessing, core.UploadActive)

	task, err := c.Submit(context.Background(), sess, validRequest(st.ID))
	require.NoError(t, err)

	ctx := context.Background()
	statuses := []core.UploadStatus{}
	for i := 0; i < 3; i++ {
		s, err := c.Poll(ctx, sess, task.ID)
		require.NoError(t, err)
		statuses = append(statuses, s)
	}
	assert.Equal(t, []core.UploadStatus{core.UploadProcessing, core.UploadProcessing, core.UploadActive}, statuses)
}

func TestPoll_TerminalIsCachedWithoutRemoteCalls(t *testing.T) {
	c, svc, sess, st := newFixture(t)
	svc.ScriptStatuses("report.pdf", core.UploadActive)

	task, _ := c.Submit(context.Background(), sess, validRequest(st.ID))
	ctx := context.Background()

	s, err := c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	require.Equal(t, core.UploadActive, s)
	callsAfterTerminal := svc.Calls("GetUploadStatus")

	for i := 0; i < 3; i++ {
		s, err = c.Poll(ctx, sess, task.ID)
		require.NoError(t, err)
		assert.Equal(t, core.UploadActive, s)
	}
	assert.Equal(t, callsAfterTerminal, svc.Calls("GetUploadStatus"), "polls after terminal must be served from the session")
}

func TestPoll_RemoteFailureStaysProcessing(t *testing.T) {
	c, svc, sess, st := newFixture(t)
	svc.ScriptStatuses("report.pdf", core.UploadProcessing, core.UploadActive)

	task, _ := c.Submit(context.Background(), sess, validRequest(st.ID))
	ctx := context.Background()

	s, err := c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	require.Equal(t, core.UploadProcessing, s)

	svc.FailNext("GetUploadStatus", &core.RemoteError{Op: "upload status", Kind: core.RemoteUnavailable, Message: "transient"})
	s, err = c.Poll(ctx, sess, task.ID)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.Equal(t, core.UploadProcessing, s, "transient failure must keep the last known status")

	queued, _ := sess.Task(task.ID)
	assert.Equal(t, core.UploadProcessing, queued.Status, "transient failure must not mark the task FAILED")

	// A later successful poll still reaches ACTIVE.
	s, err = c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.UploadActive, s)
}

func TestPoll_FailedVerdictSticks(t *testing.T) {
	c, svc, sess, st := newFixture(t)
	svc.ScriptStatuses("report.pdf", core.UploadProcessing, core.UploadFailed)

	task, _ := c.Submit(context.Background(), sess, validRequest(st.ID))
	ctx := context.Background()

	_, err := c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	s, err := c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	require.Equal(t, core.UploadFailed, s)

	s, err = c.Poll(ctx, sess, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.UploadFailed, s)
}

func TestPoll_UnknownTask(t *testing.T) {
	c, _, sess, _ := newFixture(t)
	_, err := c.Poll(context.Background(), sess, "ghost")
	assert.True(t, core.IsConfiguration(err))
}

func TestPoll_StaleHandle(t *testing.T) {
	c, svc, sess, st := newFixture(t)

	task, _ := c.Submit(context.Background(), sess, validRequest(st.ID))
	svc.FailNext("GetUploadStatus", &core.RemoteError{Op: "upload status", Kind: core.RemoteNotFound, StatusCode: 404})

	s, err := c.Poll(context.Background(), sess, task.ID)
	assert.True(t, core.IsStale(err))
	assert.Equal(t, core.UploadPending, s, "stale handle keeps the last known status")
}
