package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// Ingestion errors surfaced to the transport layer
var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("document contains no extractable text")
	ErrDuplicate       = errors.New("document already uploaded")
	ErrTooManyChunks   = errors.New("document produces too many chunks")
)

// Service handles the document lifecycle: extract, chunk, embed, index
type Service struct {
	config    *common.ChunkingConfig
	extractor *Extractor
	chunker   *Chunker
	embedder  interfaces.EmbeddingService
	vectors   interfaces.VectorStorage
	documents interfaces.DocumentStorage
	logger    arbor.ILogger
}

// NewService creates a document ingestion service
func NewService(
	config *common.ChunkingConfig,
	extractor *Extractor,
	chunker *Chunker,
	embedder interfaces.EmbeddingService,
	vectors interfaces.VectorStorage,
	documents interfaces.DocumentStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		logger:    logger,
	}
}

// Upload ingests a document for a session: validates, extracts text, chunks,
// embeds, and indexes it. Returns the stored document record.
func (s *Service) Upload(ctx context.Context, sessionID, filename, contentType string, content []byte) (*models.Document, error) {
	if s.config.MaxFileSize > 0 && len(content) > s.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(content), s.config.MaxFileSize)
	}

	contentHash := hashContent(content)
	if existing, err := s.documents.FindByContentHash(ctx, sessionID, contentHash); err == nil {
		s.logger.Debug().
			Str("session_id", sessionID).
			Str("document_id", existing.ID).
			Msg("Duplicate upload detected")
		return existing, ErrDuplicate
	} else if err != interfaces.ErrNotFound {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	extracted, err := s.extractor.Extract(contentType, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	textChunks := s.chunker.ChunkText(extracted.Text, extracted.PageCount)
	if len(textChunks) == 0 {
		return nil, ErrEmptyDocument
	}
	if s.config.MaxChunks > 0 && len(textChunks) > s.config.MaxChunks {
		return nil, fmt.Errorf("%w: %d (limit %d)", ErrTooManyChunks, len(textChunks), s.config.MaxChunks)
	}

	doc := &models.Document{
		ID:          common.NewDocumentID(),
		SessionID:   sessionID,
		Filename:    filename,
		ContentType: contentType,
		ContentHash: contentHash,
		SizeBytes:   int64(len(content)),
		PageCount:   extracted.PageCount,
		ChunkCount:  len(textChunks),
		Status:      models.DocumentStatusProcessing,
	}
	if err := s.documents.StoreDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document record: %w", err)
	}

	texts := make([]string, len(textChunks))
	for i, tc := range textChunks {
		texts[i] = tc.Text
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	chunks := make([]*models.Chunk, len(textChunks))
	now := time.Now()
	for i, tc := range textChunks {
		chunks[i] = &models.Chunk{
			ID:         fmt.Sprintf("%s:%d", doc.ID, tc.ChunkIndex),
			DocumentID: doc.ID,
			SessionID:  sessionID,
			Filename:   filename,
			ChunkIndex: tc.ChunkIndex,
			Text:       tc.Text,
			PageNumber: tc.PageNumber,
			StartChar:  tc.StartChar,
			EndChar:    tc.EndChar,
			Embedding:  embeddings[i],
			CreatedAt:  now,
		}
	}

	if err := s.vectors.UpsertChunks(ctx, chunks); err != nil {
		s.markFailed(ctx, doc, err)
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	doc.Status = models.DocumentStatusReady
	if err := s.documents.StoreDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to finalize document record: %w", err)
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("document_id", doc.ID).
		Str("filename", filename).
		Int("chunks", len(chunks)).
		Int("pages", extracted.PageCount).
		Msg("Document ingested")

	return doc, nil
}

// markFailed records an ingestion failure on the document record
func (s *Service) markFailed(ctx context.Context, doc *models.Document, cause error) {
	doc.Status = models.DocumentStatusFailed
	doc.Error = cause.Error()
	if err := s.documents.StoreDocument(ctx, doc); err != nil {
		s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to record ingestion failure")
	}
}

// List returns a session's documents, newest first
func (s *Service) List(ctx context.Context, sessionID string) ([]*models.Document, error) {
	return s.documents.GetSessionDocuments(ctx, sessionID)
}

// CountChunks returns the number of indexed chunks across a session's
// documents
func (s *Service) CountChunks(ctx context.Context, sessionID string) (int, error) {
	return s.vectors.CountChunks(ctx, sessionID)
}

// Delete removes a document and its indexed chunks
func (s *Service) Delete(ctx context.Context, sessionID, documentID string) error {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.SessionID != sessionID {
		// A session can only delete its own documents
		return interfaces.ErrNotFound
	}

	if err := s.vectors.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	if err := s.documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("document_id", documentID).
		Msg("Document deleted")

	return nil
}

// hashContent returns the hex SHA-256 of raw file content
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
