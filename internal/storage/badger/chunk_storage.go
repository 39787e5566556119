package badger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// ChunkStorage implements the VectorStorage interface for Badger.
// Similarity search scans the session's chunks and scores them in process;
// session document sets are small enough that an index structure over the
// vectors is not worth the maintenance cost.
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VectorStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertChunks stores or replaces embedded chunks
func (s *ChunkStorage) UpsertChunks(ctx context.Context, chunks []*models.Chunk) error {
	for _, chunk := range chunks {
		if err := s.db.Store().Upsert(chunk.ID, chunk); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}

	s.logger.Debug().Int("count", len(chunks)).Msg("Chunks upserted")
	return nil
}

// Search returns the topK most similar chunks for the query vector,
// scoped to a session, ordered by descending similarity. A non-empty docIDs
// restricts hits to those documents.
func (s *ChunkStorage) Search(ctx context.Context, sessionID string, docIDs []string, queryVector []float32, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	var docFilter map[string]bool
	if len(docIDs) > 0 {
		docFilter = make(map[string]bool, len(docIDs))
		for _, id := range docIDs {
			docFilter[id] = true
		}
	}

	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return nil, fmt.Errorf("failed to scan session chunks: %w", err)
	}

	results := make([]models.RetrievedChunk, 0, len(chunks))
	for i := range chunks {
		if docFilter != nil && !docFilter[chunks[i].DocumentID] {
			continue
		}
		score, err := cosineSimilarity(queryVector, chunks[i].Embedding)
		if err != nil {
			s.logger.Warn().Err(err).Str("chunk_id", chunks[i].ID).Msg("Skipping chunk with incompatible embedding")
			continue
		}
		results = append(results, models.RetrievedChunk{Chunk: &chunks[i], Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// DeleteDocument removes all chunks belonging to a document
func (s *ChunkStorage) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID")); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	return nil
}

// DeleteSession removes all chunks belonging to a session
func (s *ChunkStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.db.Store().DeleteMatching(&models.Chunk{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return fmt.Errorf("failed to delete session chunks: %w", err)
	}
	return nil
}

// CountChunks returns the number of stored chunks for a session
func (s *ChunkStorage) CountChunks(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count session chunks: %w", err)
	}
	return int(count), nil
}

// cosineSimilarity computes the cosine of the angle between two vectors
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero magnitude vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
