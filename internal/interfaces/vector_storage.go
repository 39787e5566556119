package interfaces

import (
	"context"
	"errors"

	"github.com/contextq/contextq/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// VectorStorage persists embedded chunks and serves similarity search
type VectorStorage interface {
	// UpsertChunks stores or replaces embedded chunks
	UpsertChunks(ctx context.Context, chunks []*models.Chunk) error

	// Search returns the topK most similar chunks for the query vector,
	// scoped to a session, ordered by descending similarity. A non-empty
	// docIDs restricts hits to those documents.
	Search(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error)

	// DeleteDocument removes all chunks belonging to a document
	DeleteDocument(ctx context.Context, documentID string) error

	// DeleteSession removes all chunks belonging to a session
	DeleteSession(ctx context.Context, sessionID string) error

	// CountChunks returns the number of stored chunks for a session
	CountChunks(ctx context.Context, sessionID string) (int, error)
}

// DocumentStorage persists document metadata records
type DocumentStorage interface {
	// StoreDocument inserts or updates a document record
	StoreDocument(ctx context.Context, doc *models.Document) error

	// GetDocument retrieves a document by ID, returns ErrNotFound if missing
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	// GetSessionDocuments lists a session's documents, newest first
	GetSessionDocuments(ctx context.Context, sessionID string) ([]*models.Document, error)

	// FindByContentHash locates a session document with matching content hash,
	// returns ErrNotFound when no duplicate exists
	FindByContentHash(ctx context.Context, sessionID, contentHash string) (*models.Document, error)

	// DeleteDocument removes a document record
	DeleteDocument(ctx context.Context, id string) error

	// CountDocuments returns the number of documents in a session
	CountDocuments(ctx context.Context, sessionID string) (int, error)
}
