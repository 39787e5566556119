package models

import (
	"time"
)

// DocumentStatus tracks ingestion progress
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document represents an uploaded document scoped to a session
type Document struct {
	ID          string `json:"id" badgerhold:"key"` // doc_{uuid}
	SessionID   string `json:"session_id" badgerholdIndex:"SessionID"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"` // "application/pdf", "text/plain", "text/markdown"
	ContentHash string `json:"content_hash"` // SHA-256 of raw content, for duplicate detection
	SizeBytes   int64  `json:"size_bytes"`
	PageCount   int    `json:"page_count,omitempty"` // 0 for non-paginated formats
	ChunkCount  int    `json:"chunk_count"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"` // Populated when Status is "failed"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is an embedded slice of a document stored in the vector index
type Chunk struct {
	ID         string    `json:"id" badgerhold:"key"` // {doc_id}:{chunk_index}
	DocumentID string    `json:"document_id" badgerholdIndex:"DocumentID"`
	SessionID  string    `json:"session_id" badgerholdIndex:"SessionID"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number,omitempty"` // Estimated, 0 when unknown
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	Embedding  []float32 `json:"embedding"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievedChunk pairs a stored chunk with its similarity score for one query
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"` // Cosine similarity in [-1, 1]
}

// Source is the client-facing citation derived from a retrieved chunk
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	PageNumber int     `json:"page_number,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`  // Truncated passage
	Score      float64 `json:"score"` // Rounded to 4 decimal places
}
