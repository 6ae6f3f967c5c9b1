package core

import "time"

// UploadStatus is the processing state of an upload task as reported by the
// remote service. The zero value is UploadPending.
type UploadStatus int

const (
	// UploadPending means the submission was accepted but processing has not
	// been observed yet.
	UploadPending UploadStatus = iota
	// UploadProcessing means the remote service is chunking and indexing the file.
	UploadProcessing
	// UploadActive means the file is fully indexed and queryable. Terminal.
	UploadActive
	// UploadFailed means remote processing failed. Terminal.
	UploadFailed
)

// String returns the remote service's wire spelling of the status.
func (s UploadStatus) String() string {
	switch s {
	case UploadPending:
		return "PENDING"
	case UploadProcessing:
		return "PROCESSING"
	case UploadActive:
		return "ACTIVE"
	case UploadFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status is final. Terminal statuses are sticky:
// once reached, later observations never change the task.
func (s UploadStatus) Terminal() bool { return s == UploadActive || s == UploadFailed }

// Advance is the pure transition function of the upload state machine. Given
// the current status and a freshly observed remote status it returns the next
// status. Transitions are monotonic in the order
// PENDING -> PROCESSING -> {ACTIVE, FAILED}; regressions and observations
// after a terminal status are ignored. Callers own the polling cadence.
func Advance(current, observed UploadStatus) UploadStatus {
	if current.Terminal() {
		return current
	}
	if observed < current {
		return current
	}
	return observed
}

// UploadTask represents one file submission. Tasks are created in
// UploadPending and mutated only by status polling until they reach a
// terminal state; they are never removed from the session queue before that.
type UploadTask struct {
	ID          string         `json:"id"`
	StoreID     string         `json:"store_id"`
	DisplayName string         `json:"display_name"`
	MIMEType    string         `json:"mime_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Metadata    Metadata       `json:"metadata,omitempty"`
	Chunking    ChunkingConfig `json:"chunking"`
	Handle      UploadHandle   `json:"handle"`
	Status      UploadStatus   `json:"status"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
}
