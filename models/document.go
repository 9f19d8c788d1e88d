package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the lifecycle state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Knowledge-base layers, from high-level policy down to operating procedures
const (
	LayerPolicy    = "policy"
	LayerPrinciple = "principle"
	LayerSOP       = "sop"
)

// StringList represents a list of strings stored as JSONB
type StringList []string

// Value implements driver.Valuer for JSONB
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = make(StringList, 0)
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*l = make(StringList, 0)
		return nil
	}

	if len(bytes) == 0 {
		*l = make(StringList, 0)
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Document represents an uploaded knowledge-base document
type Document struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	Size        int64          `json:"size"`
	StoragePath string         `json:"storage_path"`
	Category    string         `json:"category,omitempty"`
	Tags        StringList     `json:"tags"`
	Layer       string         `json:"layer,omitempty"` // "policy", "principle", "sop"
	Status      DocumentStatus `json:"status"`
	StatusError *string        `json:"status_error,omitempty"`
	ChunkCount  int            `json:"chunk_count"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	IndexedAt   *time.Time     `json:"indexed_at,omitempty"`
}

// DocumentChunk is one indexed slice of a document's text.
// The ID is "{document_id}_{chunk_index}" and is stable across re-ingestion.
type DocumentChunk struct {
	ID         string     `json:"id"`
	DocumentID uuid.UUID  `json:"document_id"`
	ChunkIndex int        `json:"chunk_index"`
	Text       string     `json:"text"`
	TokenCount int        `json:"token_count"`
	Title      string     `json:"title"`
	Category   string     `json:"category,omitempty"`
	Tags       StringList `json:"tags"`
	Layer      string     `json:"layer,omitempty"`
	Embedding  []float32  `json:"-"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

// RetrievedChunk pairs an indexed chunk with its per-query relevance score.
// Instances are produced by vector search and consumed immediately by the
// context assembler; they are never persisted.
type RetrievedChunk struct {
	ID         string    `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	Layer      string    `json:"layer,omitempty"`
	Score      float64   `json:"score"`
}

// SourceLabel returns the citation label for the chunk's source document
func (c RetrievedChunk) SourceLabel() string {
	if c.Title != "" {
		return c.Title
	}
	return c.DocumentID.String()
}
