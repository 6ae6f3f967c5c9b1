package core

import "context"

// UploadHandle identifies an in-flight upload on the remote service. The
// FileID is the service-assigned resource name of the uploaded document; the
// StoreID is carried because some backends scope status lookups to the store.
type UploadHandle struct {
	StoreID string `json:"store_id"`
	FileID  string `json:"file_id"`
}

// UploadRequest carries everything the remote service needs to ingest one file.
type UploadRequest struct {
	StoreID     string
	DisplayName string
	MIMEType    string
	Content     []byte
	Metadata    Metadata
	Chunking    ChunkingConfig
}

// GenerateRequest is a scoped grounded-generation request. MetadataFilter is
// an opaque boolean expression over file metadata (e.g. "category = 'finance'")
// understood by the remote service; it is passed through unvalidated.
type GenerateRequest struct {
	Model          string
	Prompt         string
	StoreID        string
	MetadataFilter string
}

// GroundingChunk is one retrieved-chunk reference attached by the remote
// service to a generated answer.
type GroundingChunk struct {
	Title   string `json:"title"`
	Locator string `json:"locator,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// GenerateResult is the decoded outcome of a grounded generation call. Chunks
// preserve the relevance order returned by the service.
type GenerateResult struct {
	Text   string           `json:"text"`
	Chunks []GroundingChunk `json:"chunks,omitempty"`
}

// RemoteService is the contract every knowledge-base backend implements. All
// durable state (stores, files, chunking, embeddings, generation) lives behind
// this interface; implementations must return *RemoteError for service
// failures so callers can distinguish retryable from non-retryable conditions.
type RemoteService interface {
	// CreateStore allocates a new document store with the given display name.
	CreateStore(ctx context.Context, displayName string) (Store, error)

	// ListStores returns the full current set of stores. The remote service is
	// the sole source of truth; callers replace any local cache wholesale.
	ListStores(ctx context.Context) ([]Store, error)

	// DeleteStore removes a store and its documents.
	DeleteStore(ctx context.Context, id string) error

	// UploadFile submits a file for asynchronous ingestion and returns a
	// handle for status polling.
	UploadFile(ctx context.Context, req UploadRequest) (UploadHandle, error)

	// GetUploadStatus reports the current processing state of an upload.
	GetUploadStatus(ctx context.Context, h UploadHandle) (UploadStatus, error)

	// ListFiles returns all uploaded documents. Listing is global, not scoped
	// to a store.
	ListFiles(ctx context.Context) ([]FileInfo, error)

	// DeleteFile removes an uploaded document by its resource name.
	DeleteFile(ctx context.Context, id string) error

	// GenerateGrounded produces an answer grounded in the given store,
	// optionally scoped by a metadata filter.
	GenerateGrounded(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
