package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzg777/filesearch/core"
)

// MockService is a lightweight in-memory core.RemoteService useful for tests
// and examples. It supports canned answers, scripted upload status sequences,
// one-shot failure injection and per-operation call counters.
type MockService struct {
	mu       sync.Mutex
	seq      int
	stores   map[string]core.Store
	order    []string
	files    map[string]*mockFile // keyed by file resource name
	answers  map[string]core.GenerateResult
	scripts  map[string][]core.UploadStatus // keyed by display name
	failNext map[string]error
	calls    map[string]int
	lastGen  core.GenerateRequest
}

var _ core.RemoteService = (*MockService)(nil)

type mockFile struct {
	storeID     string
	displayName string
	sizeBytes   int64
	createTime  time.Time
	statuses    []core.UploadStatus
	polls       int
}

// NewMockService constructs an empty mock backend.
func NewMockService() *MockService {
	return &MockService{
		stores:   map[string]core.Store{},
		files:    map[string]*mockFile{},
		answers:  map[string]core.GenerateResult{},
		scripts:  map[string][]core.UploadStatus{},
		failNext: map[string]error{},
		calls:    map[string]int{},
	}
}

// AddAnswer registers a deterministic canned result for a prompt.
func (m *MockService) AddAnswer(prompt string, res core.GenerateResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[prompt] = res
}

// ScriptStatuses sets the status sequence later polls will observe for an
// upload with the given display name. The last status repeats forever.
func (m *MockService) ScriptStatuses(displayName string, statuses ...core.UploadStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[displayName] = statuses
}

// FailNext makes the next call of the named operation (e.g. "GetUploadStatus")
// return err instead of executing.
func (m *MockService) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = err
}

// Calls returns how many times the named operation ran (failure injections
// count too).
func (m *MockService) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// LastGenerate returns the most recent grounded-generation request.
func (m *MockService) LastGenerate() core.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastGen
}

func (m *MockService) begin(op string) error {
	m.calls[op]++
	if err, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return err
	}
	return nil
}

// CreateStore implements core.RemoteService.
func (m *MockService) CreateStore(ctx context.Context, displayName string) (core.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("CreateStore"); err != nil {
		return core.Store{}, err
	}
	m.seq++
	st := core.Store{
		ID:          fmt.Sprintf("fileSearchStores/mock-%04d", m.seq),
		DisplayName: displayName,
		CreateTime:  time.Now().UTC(),
	}
	m.stores[st.ID] = st
	m.order = append(m.order, st.ID)
	return st, nil
}

// ListStores implements core.RemoteService.
func (m *MockService) ListStores(ctx context.Context) ([]core.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("ListStores"); err != nil {
		return nil, err
	}
	out := make([]core.Store, 0, len(m.order))
	for _, id := range m.order {
		st := m.stores[id]
		st.FileCount = m.fileCount(id)
		out = append(out, st)
	}
	return out, nil
}

// DeleteStore implements core.RemoteService.
func (m *MockService) DeleteStore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("DeleteStore"); err != nil {
		return err
	}
	if _, ok := m.stores[id]; !ok {
		return &core.RemoteError{Op: "delete store", Kind: core.RemoteNotFound, StatusCode: 404, Message: "store not found: " + id}
	}
	delete(m.stores, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for fileID, f := range m.files {
		if f.storeID == id {
			delete(m.files, fileID)
		}
	}
	return nil
}

// RemoveStoreDirect deletes a store bypassing counters, simulating concurrent
// external deletion.
func (m *MockService) RemoveStoreDirect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for fileID, f := range m.files {
		if f.storeID == id {
			delete(m.files, fileID)
		}
	}
}

// UploadFile implements core.RemoteService.
func (m *MockService) UploadFile(ctx context.Context, req core.UploadRequest) (core.UploadHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("UploadFile"); err != nil {
		return core.UploadHandle{}, err
	}
	if _, ok := m.stores[req.StoreID]; !ok {
		return core.UploadHandle{}, &core.RemoteError{Op: "upload file", Kind: core.RemoteNotFound, StatusCode: 404, Message: "store not found: " + req.StoreID}
	}
	m.seq++
	fileID := fmt.Sprintf("files/mock-%04d", m.seq)
	statuses := m.scripts[req.DisplayName]
	if len(statuses) == 0 {
		statuses = []core.UploadStatus{core.UploadProcessing, core.UploadActive}
	}
	m.files[fileID] = &mockFile{
		storeID:     req.StoreID,
		displayName: req.DisplayName,
		sizeBytes:   int64(len(req.Content)),
		createTime:  time.Now().UTC(),
		statuses:    statuses,
	}
	return core.UploadHandle{StoreID: req.StoreID, FileID: fileID}, nil
}

// GetUploadStatus implements core.RemoteService. Each call observes the next
// scripted status; the final one repeats.
func (m *MockService) GetUploadStatus(ctx context.Context, h core.UploadHandle) (core.UploadStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GetUploadStatus"); err != nil {
		return core.UploadPending, err
	}
	f, ok := m.files[h.FileID]
	if !ok {
		return core.UploadPending, &core.RemoteError{Op: "upload status", Kind: core.RemoteNotFound, StatusCode: 404, Message: "file not found: " + h.FileID}
	}
	idx := f.polls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.polls++
	return f.statuses[idx], nil
}

// ListFiles implements core.RemoteService. Listing is global across stores,
// ordered by file resource name.
func (m *MockService) ListFiles(ctx context.Context) ([]core.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("ListFiles"); err != nil {
		return nil, err
	}
	out := make([]core.FileInfo, 0, len(m.files))
	for fileID, f := range m.files {
		idx := f.polls
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		out = append(out, core.FileInfo{
			ID:          fileID,
			DisplayName: f.displayName,
			SizeBytes:   f.sizeBytes,
			Status:      f.statuses[idx],
			CreateTime:  f.createTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteFile implements core.RemoteService.
func (m *MockService) DeleteFile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("DeleteFile"); err != nil {
		return err
	}
	if _, ok := m.files[id]; !ok {
		return &core.RemoteError{Op: "delete file", Kind: core.RemoteNotFound, StatusCode: 404, Message: "file not found: " + id}
	}
	delete(m.files, id)
	return nil
}

// RemoveFileDirect deletes a file bypassing counters, simulating concurrent
// external deletion.
func (m *MockService) RemoveFileDirect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
}

// GenerateGrounded implements core.RemoteService. Without a canned answer it
// echoes the prompt and cites every file uploaded to the store, in upload
// order.
func (m *MockService) GenerateGrounded(ctx context.Context, req core.GenerateRequest) (core.GenerateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("GenerateGrounded"); err != nil {
		return core.GenerateResult{}, err
	}
	m.lastGen = req
	if _, ok := m.stores[req.StoreID]; !ok {
		return core.GenerateResult{}, &core.RemoteError{Op: "generate", Kind: core.RemoteNotFound, StatusCode: 404, Message: "store not found: " + req.StoreID}
	}
	if res, ok := m.answers[req.Prompt]; ok {
		return res, nil
	}
	res := core.GenerateResult{Text: "Mock grounded answer to: " + req.Prompt}
	for fileID, f := range m.files {
		if f.storeID != req.StoreID {
			continue
		}
		res.Chunks = append(res.Chunks, core.GroundingChunk{Title: f.displayName, Locator: fileID})
	}
	// Map iteration order is random; keep citations deterministic.
	sort.Slice(res.Chunks, func(i, j int) bool { return res.Chunks[i].Locator < res.Chunks[j].Locator })
	return res, nil
}

func (m *MockService) fileCount(storeID string) int {
	n := 0
	for _, f := range m.files {
		if f.storeID == storeID {
			n++
		}
	}
	return n
}
