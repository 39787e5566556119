package rag

import (
	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/models"
)

// Filter drops retrieved chunks below the relevance threshold
type Filter struct {
	config *common.RAGConfig
	logger arbor.ILogger
}

// NewFilter creates a relevance filter
func NewFilter(config *common.RAGConfig, logger arbor.ILogger) *Filter {
	return &Filter{
		config: config,
		logger: logger,
	}
}

// Apply keeps chunks with score >= min_relevance_score, preserving input
// order. The boundary is inclusive: a chunk exactly at the threshold stays.
func (f *Filter) Apply(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	if len(chunks) == 0 {
		f.logger.Debug().Msg("Relevance filter: nothing retrieved")
		return nil
	}

	kept := make([]models.RetrievedChunk, 0, len(chunks))
	for _, rc := range chunks {
		if rc.Score >= f.config.MinRelevanceScore {
			kept = append(kept, rc)
		}
	}

	if len(kept) == 0 {
		f.logger.Debug().
			Int("retrieved", len(chunks)).
			Float64("min_score", f.config.MinRelevanceScore).
			Msg("Relevance filter: all retrieved chunks below threshold")
		return nil
	}

	f.logger.Debug().
		Int("retrieved", len(chunks)).
		Int("kept", len(kept)).
		Float64("min_score", f.config.MinRelevanceScore).
		Msg("Relevance filter applied")

	return kept
}
