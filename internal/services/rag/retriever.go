package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// Retriever embeds queries and pulls candidate chunks from the vector store
type Retriever struct {
	config   *common.RAGConfig
	embedder interfaces.EmbeddingService
	store    interfaces.VectorStorage
	logger   arbor.ILogger
}

// NewRetriever creates a retriever
func NewRetriever(config *common.RAGConfig, embedder interfaces.EmbeddingService, store interfaces.VectorStorage, logger arbor.ILogger) *Retriever {
	return &Retriever{
		config:   config,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Retrieve returns candidate chunks for the question, ordered by descending
// similarity. docIDs limits the search to those documents; empty means the
// whole session. When the analysis carries sub-queries, each query retrieves
// a small slice and the merged result is deduplicated. Embedding and search
// failures propagate to the caller; retrieval has no safe fallback.
func (r *Retriever) Retrieve(ctx context.Context, sessionID string, docIDs []string, question string, analysis *models.QueryAnalysis) ([]models.RetrievedChunk, error) {
	if analysis != nil && analysis.NeedsDecomposition && len(analysis.SubQueries) > 0 {
		return r.retrieveDecomposed(ctx, sessionID, docIDs, question, analysis.SubQueries)
	}
	return r.retrieveSingle(ctx, sessionID, docIDs, question)
}

func (r *Retriever) retrieveSingle(ctx context.Context, sessionID string, docIDs []string, question string) ([]models.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	chunks, err := r.store.Search(ctx, sessionID, docIDs, vector, r.config.RetrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	r.logger.Debug().
		Str("session_id", sessionID).
		Int("retrieved", len(chunks)).
		Msg("Single-query retrieval complete")

	return chunks, nil
}

// retrieveDecomposed runs the original question plus each sub-query,
// keeping query order significant: when two queries surface the same chunk,
// the earlier query's score wins.
func (r *Retriever) retrieveDecomposed(ctx context.Context, sessionID string, docIDs []string, question string, subQueries []string) ([]models.RetrievedChunk, error) {
	queries := append([]string{question}, subQueries...)

	vectors, err := r.embedder.EmbedTexts(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("batch query embedding failed: %w", err)
	}
	if len(vectors) != len(queries) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(queries), len(vectors))
	}

	seen := make(map[string]bool)
	var merged []models.RetrievedChunk

	for i, vector := range vectors {
		chunks, err := r.store.Search(ctx, sessionID, docIDs, vector, r.config.DecompositionTopK)
		if err != nil {
			return nil, fmt.Errorf("vector search failed for query %d: %w", i, err)
		}

		for _, rc := range chunks {
			key := fmt.Sprintf("%s:%d", rc.Chunk.DocumentID, rc.Chunk.ChunkIndex)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, rc)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	limit := 2 * r.config.RetrievalTopK
	if len(merged) > limit {
		merged = merged[:limit]
	}

	r.logger.Debug().
		Str("session_id", sessionID).
		Int("queries", len(queries)).
		Int("retrieved", len(merged)).
		Msg("Decomposition retrieval complete")

	return merged, nil
}
