package core

import (
	"time"

	"github.com/google/uuid"
)

// Roles carried by transcript messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewID returns a new unique identifier for messages and upload tasks.
func NewID() string { return uuid.NewString() }

// Store describes a remote document container. Stores are created and deleted
// through the RemoteService and never mutated locally; the ID is the opaque
// resource name assigned by the service (e.g. "fileSearchStores/abc123").
type Store struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreateTime  time.Time `json:"create_time,omitempty"`
	FileCount   int       `json:"file_count,omitempty"`
}

// FileInfo describes one uploaded document as reported by the remote service.
// File listing is global across stores; the ID is the service-assigned
// resource name (e.g. "files/xyz789").
type FileInfo struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	SizeBytes   int64        `json:"size_bytes,omitempty"`
	Status      UploadStatus `json:"status"`
	CreateTime  time.Time    `json:"create_time,omitempty"`
}

// MetadataField is a single key/value pair attached to an uploaded file.
type MetadataField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is an ordered sequence of fields. Order is preserved as entered;
// keys must be unique within one upload.
type Metadata []MetadataField

// Validate enforces the key uniqueness invariant at submission time.
func (m Metadata) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, f := range m {
		if f.Key == "" {
			return &ConfigurationError{Op: "metadata", Reason: "empty metadata key"}
		}
		if _, dup := seen[f.Key]; dup {
			return &ConfigurationError{Op: "metadata", Reason: "duplicate metadata key " + f.Key}
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// Get returns the value for key and whether it is present.
func (m Metadata) Get(key string) (string, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// ChunkingConfig controls how the remote service splits a document into
// retrieval-sized segments at ingestion time.
type ChunkingConfig struct {
	MaxTokensPerChunk int `json:"max_tokens_per_chunk"`
	OverlapTokens     int `json:"overlap_tokens"`
}

// Validate checks the chunking bounds. Violations are configuration errors,
// not remote failures, and must be caught before any remote call.
func (c ChunkingConfig) Validate() error {
	if c.MaxTokensPerChunk <= 0 {
		return &ConfigurationError{Op: "chunking", Reason: "max tokens per chunk must be positive"}
	}
	if c.OverlapTokens < 0 {
		return &ConfigurationError{Op: "chunking", Reason: "overlap must not be negative"}
	}
	if c.OverlapTokens >= c.MaxTokensPerChunk {
		return &ConfigurationError{Op: "chunking", Reason: "overlap must be smaller than max tokens per chunk"}
	}
	return nil
}

// Citation references one retrieved chunk that grounds an assistant answer.
// A citation belongs exclusively to the message that owns it.
type Citation struct {
	Title   string `json:"title"`
	Locator string `json:"locator,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ChatMessage is a single transcript entry. Citations are populated for
// assistant messages only and preserve the relevance order established by the
// remote service.
type ChatMessage struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewUserMessage creates a user-authored transcript entry.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleUser, Text: text, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant transcript entry with its citations.
func NewAssistantMessage(text string, citations []Citation) ChatMessage {
	return ChatMessage{ID: NewID(), Role: RoleAssistant, Text: text, Citations: citations, Timestamp: time.Now().UTC()}
}
