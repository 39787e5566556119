package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// greetings that skip retrieval entirely regardless of document count
var greetingSet = map[string]bool{
	"hi":        true,
	"hello":     true,
	"hey":       true,
	"help":      true,
	"?":         true,
	"thanks":    true,
	"thank you": true,
}

const analyzerSystemPrompt = `You analyze user questions for a document Q&A system and decide how to route them.

Rules:
- skip_rag is true only for greetings, small talk, or questions about the assistant itself that need no document lookup.
- needs_decomposition is true only for multi-part or comparative questions that retrieve better as separate focused sub-queries.
- When needs_decomposition is true, produce 2-3 short self-contained sub_queries. Otherwise leave sub_queries empty.
- reasoning is one short sentence.`

// analysisResult mirrors the structured output schema
type analysisResult struct {
	SkipRAG            bool     `json:"skip_rag"`
	NeedsDecomposition bool     `json:"needs_decomposition"`
	Reasoning          string   `json:"reasoning"`
	SubQueries         []string `json:"sub_queries"`
}

// Analyzer decides whether a question needs retrieval and whether it should
// be decomposed into sub-queries. Fast paths answer without an LLM call;
// every LLM failure falls back to a safe default that keeps retrieval on.
type Analyzer struct {
	config    *common.LLMConfig
	generator interfaces.TextGenerator
	logger    arbor.ILogger
	timeout   time.Duration
}

// NewAnalyzer creates a query analyzer
func NewAnalyzer(config *common.LLMConfig, generator interfaces.TextGenerator, logger arbor.ILogger) (*Analyzer, error) {
	timeout, err := time.ParseDuration(config.AnalysisTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid analysis timeout '%s': %w", config.AnalysisTimeout, err)
	}

	return &Analyzer{
		config:    config,
		generator: generator,
		logger:    logger,
		timeout:   timeout,
	}, nil
}

// Analyze routes a question. docCount is the number of documents available
// in the session. Never returns an error: failures degrade to a safe
// default with the cause in Reasoning.
func (a *Analyzer) Analyze(ctx context.Context, question string, docCount int) *models.QueryAnalysis {
	normalized := strings.ToLower(strings.TrimSpace(question))
	words := strings.Fields(normalized)

	// Greeting fast path runs first so greetings skip retrieval for any
	// document count
	if len(words) <= 2 && greetingSet[normalized] {
		return &models.QueryAnalysis{
			SkipRAG:   true,
			Reasoning: "Greeting detected",
		}
	}

	// With zero or one document there is nothing to decompose across
	if docCount <= 1 {
		return &models.QueryAnalysis{
			Reasoning: "Single document, no decomposition needed",
		}
	}

	// Very short questions are already a single focused query
	if len(words) < 4 {
		return &models.QueryAnalysis{
			Reasoning: "Short question, no decomposition needed",
		}
	}

	analysisCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.generator.GenerateStructured(analysisCtx, analyzerSystemPrompt,
		[]interfaces.Message{{Role: "user", Content: question}},
		analysisSchema(), interfaces.GenerateOptions{
			Model:     a.config.AnalysisModel,
			MaxTokens: 1024,
		})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Query analysis failed, using default routing")
		return &models.QueryAnalysis{
			Reasoning: fmt.Sprintf("Analysis unavailable (%v), using default routing", err),
		}
	}

	var result analysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		a.logger.Warn().Err(err).Msg("Query analysis returned malformed JSON, using default routing")
		return &models.QueryAnalysis{
			Reasoning: "Analysis returned malformed output, using default routing",
		}
	}

	analysis := &models.QueryAnalysis{
		SkipRAG:            result.SkipRAG,
		NeedsDecomposition: result.NeedsDecomposition,
		SubQueries:         a.sanitizeSubQueries(result.SubQueries),
		Reasoning:          result.Reasoning,
		UsedLLM:            true,
	}

	// Decomposition without usable sub-queries degrades to a single query
	if analysis.NeedsDecomposition && len(analysis.SubQueries) == 0 {
		analysis.NeedsDecomposition = false
	}

	a.logger.Debug().
		Bool("skip_rag", analysis.SkipRAG).
		Bool("needs_decomposition", analysis.NeedsDecomposition).
		Int("sub_queries", len(analysis.SubQueries)).
		Str("reasoning", analysis.Reasoning).
		Msg("Query analyzed")

	return analysis
}

// sanitizeSubQueries drops empty entries, clips overlong ones, and caps the
// list at the configured maximum
func (a *Analyzer) sanitizeSubQueries(raw []string) []string {
	maxQueries := a.config.MaxSubQueries
	if maxQueries <= 0 {
		maxQueries = 3
	}
	maxLength := a.config.SubQueryMaxLength
	if maxLength <= 0 {
		maxLength = 500
	}

	var cleaned []string
	for _, sq := range raw {
		if len(cleaned) >= maxQueries {
			break
		}
		sq = strings.TrimSpace(sq)
		if sq == "" {
			continue
		}
		cleaned = append(cleaned, clipRunes(sq, maxLength, ""))
	}

	return cleaned
}

// analysisSchema is the structured output contract for the analysis call
func analysisSchema() interfaces.ToolSchema {
	return interfaces.ToolSchema{
		Name:        "analyze_query",
		Description: "Record the routing decision for a user question",
		Properties: map[string]any{
			"skip_rag": map[string]any{
				"type":        "boolean",
				"description": "True when the question needs no document retrieval",
			},
			"needs_decomposition": map[string]any{
				"type":        "boolean",
				"description": "True when the question should be split into sub-queries",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One sentence explaining the decision",
			},
			"sub_queries": map[string]any{
				"type":        "array",
				"description": "Self-contained sub-queries when decomposition is needed",
				"items":       map[string]any{"type": "string"},
			},
		},
		Required: []string{"skip_rag", "needs_decomposition", "reasoning"},
	}
}
