package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

// StoreDocument inserts or updates a document record
func (s *DocumentStorage) StoreDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by ID
func (s *DocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.Store().Get(id, &doc)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// GetSessionDocuments lists a session's documents, newest first
func (s *DocumentStorage) GetSessionDocuments(ctx context.Context, sessionID string) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return nil, fmt.Errorf("failed to list session documents: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

// FindByContentHash locates a session document with matching content hash
func (s *DocumentStorage) FindByContentHash(ctx context.Context, sessionID, contentHash string) (*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID").And("ContentHash").Eq(contentHash)
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to query by content hash: %w", err)
	}
	if len(docs) == 0 {
		return nil, interfaces.ErrNotFound
	}

	return &docs[0], nil
}

// DeleteDocument removes a document record
func (s *DocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.Document{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// CountDocuments returns the number of documents in a session
func (s *DocumentStorage) CountDocuments(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count session documents: %w", err)
	}
	return int(count), nil
}
