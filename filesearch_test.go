package filesearch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/remote"
)

func newStudio(mock *remote.MockService) *Studio {
	return New(func(o *Options) {
		o.Remote = mock
		o.PollInterval = time.Millisecond
	})
}

func TestOpenSession_RequiresCredential(t *testing.T) {
	s := newStudio(remote.NewMockService())
	_, err := s.OpenSession(context.Background(), nil)
	assert.True(t, core.IsConfiguration(err))
}

func TestOpenSession_RejectsInvalidCredential(t *testing.T) {
	mock := remote.NewMockService()
	mock.FailNext("ListStores", &core.RemoteError{Op: "list stores", Kind: core.RemoteInvalidCredential})
	s := newStudio(mock)

	id, err := s.OpenSession(context.Background(), []byte("bad-key"))
	require.Error(t, err)
	assert.False(t, core.IsRetryable(err))

	// The failed session must not be addressable afterwards.
	_, err = s.Stores(id)
	assert.Error(t, err)
}

func TestStudio_FullWorkflow(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	mock.ScriptStatuses("report.pdf", core.UploadProcessing, core.UploadProcessing, core.UploadActive)
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("valid-api-key"))
	require.NoError(t, err)

	st, err := s.CreateStore(ctx, sid, "Finance Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	task, err := s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "report.pdf",
		MIMEType:    "application/pdf",
		Content:     []byte("%PDF-1.4 fake"),
		Metadata:    core.Metadata{{Key: "category", Value: "finance"}},
		Chunking:    core.ChunkingConfig{MaxTokensPerChunk: 800, OverlapTokens: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, core.UploadPending, task.Status)
	assert.Equal(t, st.ID, task.StoreID)

	status, err := s.WaitForUpload(ctx, sid, task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.UploadActive, status)

	msg, err := s.Ask(ctx, sid, "What are the key findings?",
		WithModel("gemini-2.5-flash"),
		WithMetadataFilter("category = 'finance'"))
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, msg.Role)
	require.NotEmpty(t, msg.Citations)
	assert.Equal(t, "report.pdf", msg.Citations[0].Title)

	sent := mock.LastGenerate()
	assert.Equal(t, "gemini-2.5-flash", sent.Model)
	assert.Equal(t, st.ID, sent.StoreID)
	assert.Equal(t, "category = 'finance'", sent.MetadataFilter)

	transcript, err := s.Transcript(sid)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, core.RoleUser, transcript[0].Role)
	assert.Equal(t, core.RoleAssistant, transcript[1].Role)
}

func TestUpload_DefaultChunkingApplied(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	task, err := s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "notes.txt",
		MIMEType:    "text/plain",
		Content:     []byte("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultChunking, task.Chunking)
}

func TestWaitForUpload_StaleHandleEndsWait(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	task, err := s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "doomed.txt", MIMEType: "text/plain", Content: []byte("x"),
	})
	require.NoError(t, err)

	mock.RemoveStoreDirect(st.ID)
	_, err = s.WaitForUpload(ctx, sid, task.ID)
	assert.True(t, core.IsStale(err))
}

// revokedStatusService reports an invalid credential on every status poll.
type revokedStatusService struct {
	*remote.MockService
	polls int
}

func (s *revokedStatusService) GetUploadStatus(ctx context.Context, h core.UploadHandle) (core.UploadStatus, error) {
	s.polls++
	return core.UploadPending, &core.RemoteError{Op: "upload status", Kind: core.RemoteInvalidCredential, StatusCode: 401, Message: "API key revoked"}
}

func TestWaitForUpload_NonRetryableFailureEndsWait(t *testing.T) {
	svc := &revokedStatusService{MockService: remote.NewMockService()}
	s := New(func(o *Options) {
		o.Remote = svc
		o.PollInterval = time.Millisecond
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))
	task, err := s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "doc.txt", MIMEType: "text/plain", Content: []byte("x"),
	})
	require.NoError(t, err)

	_, err = s.WaitForUpload(ctx, sid, task.ID)
	var re *core.RemoteError
	require.ErrorAs(t, err, &re, "the credential failure must surface, not a ctx deadline")
	assert.Equal(t, core.RemoteInvalidCredential, re.Kind)
	assert.Equal(t, 1, svc.polls, "a non-retryable failure must not be polled again")
}

func TestStudio_FileManagement(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	task, err := s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "notes.txt",
		MIMEType:    "text/plain",
		Content:     []byte("hello"),
	})
	require.NoError(t, err)

	files, err := s.Files(ctx, sid)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].DisplayName)
	assert.EqualValues(t, 5, files[0].SizeBytes)

	require.NoError(t, s.DeleteFile(ctx, sid, task.Handle.FileID))
	files, err = s.Files(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestClearTranscript_KeepsSelectionAndTasks(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	_, err = s.Upload(ctx, sid, core.UploadRequest{
		DisplayName: "a.txt", MIMEType: "text/plain", Content: []byte("x"),
	})
	require.NoError(t, err)
	_, err = s.Ask(ctx, sid, "anything?")
	require.NoError(t, err)

	require.NoError(t, s.ClearTranscript(sid))

	transcript, _ := s.Transcript(sid)
	assert.Empty(t, transcript)
	_, ok, _ := s.SelectedStore(sid)
	assert.True(t, ok)
	tasks, _ := s.Tasks(sid)
	assert.Len(t, tasks, 1)
}

func TestCloseSession_DropsState(t *testing.T) {
	ctx := context.Background()
	s := newStudio(remote.NewMockService())

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	require.NoError(t, s.CloseSession(sid))

	_, err = s.Stores(sid)
	assert.Error(t, err)
	// Closing twice is harmless.
	assert.NoError(t, s.CloseSession(sid))
}

func TestSetModel_AppliesToSubsequentAsks(t *testing.T) {
	ctx := context.Background()
	mock := remote.NewMockService()
	s := newStudio(mock)

	sid, err := s.OpenSession(ctx, []byte("key"))
	require.NoError(t, err)
	st, err := s.CreateStore(ctx, sid, "Docs")
	require.NoError(t, err)
	require.NoError(t, s.SelectStore(sid, st.ID))

	require.NoError(t, s.SetModel(sid, "gemini-2.5-pro"))
	_, err = s.Ask(ctx, sid, "hello?")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", mock.LastGenerate().Model)

	assert.Error(t, s.SetModel(sid, ""))
}
