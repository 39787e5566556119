package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

// Service orchestrates the answer pipeline: analyze, retrieve, filter,
// assemble, generate. Events stream in a fixed order: one sources event,
// zero or more content events, then exactly one done or error event.
type Service struct {
	config    *common.Config
	analyzer  *Analyzer
	retriever *Retriever
	filter    *Filter
	assembler *Assembler
	generator interfaces.TextGenerator
	history   interfaces.HistoryService
	documents interfaces.DocumentStorage
	respCache interfaces.ResponseCache
	logger    arbor.ILogger
}

// NewService creates the answer pipeline orchestrator
func NewService(
	config *common.Config,
	analyzer *Analyzer,
	retriever *Retriever,
	filter *Filter,
	assembler *Assembler,
	generator interfaces.TextGenerator,
	history interfaces.HistoryService,
	documents interfaces.DocumentStorage,
	respCache interfaces.ResponseCache,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		analyzer:  analyzer,
		retriever: retriever,
		filter:    filter,
		assembler: assembler,
		generator: generator,
		history:   history,
		documents: documents,
		respCache: respCache,
		logger:    logger,
	}
}

// StreamAnswer validates the request and runs the pipeline. Validation
// failures return an error immediately with no channel; once a channel is
// returned, the pipeline reports failures as a terminal error event.
// The channel closes after the terminal event.
func (s *Service) StreamAnswer(ctx context.Context, req *models.ChatRequest) (<-chan models.StreamEvent, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if len(question) > s.config.RAG.QuestionMaxLength {
		return nil, ErrQuestionTooLong
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, ErrMissingSession
	}

	events := make(chan models.StreamEvent)
	go func() {
		defer close(events)
		s.run(ctx, req.SessionID, question, req.DocIDs, events)
	}()

	return events, nil
}

// emit sends an event unless the caller has gone away
func (s *Service) emit(ctx context.Context, events chan<- models.StreamEvent, event models.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) run(ctx context.Context, sessionID, question string, requestedDocIDs []string, events chan<- models.StreamEvent) {
	// History load is best-effort: an empty context degrades the prompt,
	// not the answer
	history, err := s.history.GetContext(ctx, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to load conversation context")
		history = nil
	}

	docIDs, docCount, err := s.resolveScope(ctx, sessionID, requestedDocIDs)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to resolve document scope")
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventError, Error: "Failed to read session documents."})
		return
	}

	analysis := s.analyzer.Analyze(ctx, question, docCount)

	if analysis.SkipRAG {
		s.runGeneral(ctx, sessionID, question, history, events)
		return
	}

	if docCount == 0 {
		s.finishWithFallback(ctx, sessionID, question, FallbackNoDocuments, events)
		return
	}

	retrieved, err := s.retriever.Retrieve(ctx, sessionID, docIDs, question, analysis)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Retrieval failed")
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventError, Error: "Failed to search the uploaded documents."})
		return
	}

	relevant := s.filter.Apply(retrieved)
	if len(relevant) == 0 {
		s.finishWithFallback(ctx, sessionID, question, FallbackNoRelevant, events)
		return
	}

	sources := s.assembler.BuildSources(relevant)

	cacheKey := s.responseCacheKey(question, relevant)
	if s.respCache != nil {
		if cached, ok := s.respCache.Get(cacheKey); ok {
			s.logger.Debug().Str("session_id", sessionID).Msg("Response cache hit")
			s.replayCached(ctx, sessionID, question, cached, events)
			return
		}
	}

	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventSources, Sources: sources}) {
		return
	}

	contextText := s.assembler.BuildContext(relevant)
	system, messages := s.assembler.BuildRAGPrompt(question, contextText, history)

	answer, err := s.generator.GenerateStream(ctx, system, messages, interfaces.GenerateOptions{
		MaxTokens:   s.config.LLM.GenerationMaxTokens,
		Temperature: s.config.LLM.GenerationTemp,
	}, func(text string) {
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventContent, Content: text})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Answer generation failed")
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventError, Error: "Failed to generate an answer."})
		return
	}

	if s.respCache != nil {
		s.respCache.Set(cacheKey, &interfaces.CachedResponse{Answer: answer, Sources: sources})
	}

	s.persistExchange(ctx, sessionID, question, answer, sources)

	s.emit(ctx, events, models.StreamEvent{
		Type:       models.StreamEventDone,
		FullAnswer: answer,
		Sources:    sources,
	})
}

// runGeneral answers without retrieval. The sources event still leads the
// stream so clients see a uniform event order.
func (s *Service) runGeneral(ctx context.Context, sessionID, question string, history []interfaces.Message, events chan<- models.StreamEvent) {
	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventSources, Sources: []models.Source{}}) {
		return
	}

	system, messages := s.assembler.BuildGeneralPrompt(question, history)

	answer, err := s.generator.GenerateStream(ctx, system, messages, interfaces.GenerateOptions{
		MaxTokens:   s.config.LLM.GenerationMaxTokens,
		Temperature: s.config.LLM.GeneralTemp,
	}, func(text string) {
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventContent, Content: text})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("General answer generation failed")
		s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventError, Error: "Failed to generate an answer."})
		return
	}

	s.persistExchange(ctx, sessionID, question, answer, nil)

	s.emit(ctx, events, models.StreamEvent{
		Type:       models.StreamEventDone,
		FullAnswer: answer,
		Sources:    []models.Source{},
	})
}

// finishWithFallback emits a fixed answer without touching the LLM
func (s *Service) finishWithFallback(ctx context.Context, sessionID, question, answer string, events chan<- models.StreamEvent) {
	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventSources, Sources: []models.Source{}}) {
		return
	}
	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventContent, Content: answer}) {
		return
	}

	s.persistExchange(ctx, sessionID, question, answer, nil)

	s.emit(ctx, events, models.StreamEvent{
		Type:       models.StreamEventDone,
		FullAnswer: answer,
		Sources:    []models.Source{},
	})
}

// replayCached streams a cached answer through the normal event order
func (s *Service) replayCached(ctx context.Context, sessionID, question string, cached *interfaces.CachedResponse, events chan<- models.StreamEvent) {
	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventSources, Sources: cached.Sources}) {
		return
	}
	if !s.emit(ctx, events, models.StreamEvent{Type: models.StreamEventContent, Content: cached.Answer}) {
		return
	}

	s.persistExchange(ctx, sessionID, question, cached.Answer, cached.Sources)

	s.emit(ctx, events, models.StreamEvent{
		Type:       models.StreamEventDone,
		FullAnswer: cached.Answer,
		Sources:    cached.Sources,
	})
}

// persistExchange writes the turn and fires summarization. Both are
// best-effort and never affect the emitted events. Summarization makes an
// LLM call, so it runs off the request path and survives request cancel.
func (s *Service) persistExchange(ctx context.Context, sessionID, question, answer string, sources []models.Source) {
	s.history.AppendExchange(ctx, sessionID, question, answer, sources)

	summaryCtx := context.WithoutCancel(ctx)
	common.SafeGo(s.logger, "summarize", func() {
		s.history.MaybeSummarize(summaryCtx, sessionID)
	})
}

// resolveScope turns the caller's requested document subset into the set
// retrieval will search. A nil request means every session document. An
// explicit subset is intersected with the session's documents, so unknown or
// foreign ids narrow the scope rather than leak across sessions; an empty
// result takes the no-documents branch.
func (s *Service) resolveScope(ctx context.Context, sessionID string, requested []string) ([]string, int, error) {
	if requested == nil {
		count, err := s.documents.CountDocuments(ctx, sessionID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count session documents: %w", err)
		}
		return nil, count, nil
	}

	docs, err := s.documents.GetSessionDocuments(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list session documents: %w", err)
	}

	available := make(map[string]bool, len(docs))
	for _, doc := range docs {
		available[doc.ID] = true
	}

	scoped := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if available[id] && !seen[id] {
			seen[id] = true
			scoped = append(scoped, id)
		}
	}

	if len(scoped) < len(requested) {
		s.logger.Debug().
			Str("session_id", sessionID).
			Int("requested", len(requested)).
			Int("scoped", len(scoped)).
			Msg("Document scope narrowed to the session's documents")
	}

	return scoped, len(scoped), nil
}

// responseCacheKey hashes the question with the document set it was answered
// against, so a changed document set invalidates the cached answer
func (s *Service) responseCacheKey(question string, chunks []models.RetrievedChunk) string {
	docIDs := make([]string, 0, len(chunks))
	seen := make(map[string]bool)
	for _, rc := range chunks {
		if !seen[rc.Chunk.DocumentID] {
			seen[rc.Chunk.DocumentID] = true
			docIDs = append(docIDs, rc.Chunk.DocumentID)
		}
	}
	sort.Strings(docIDs)

	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s", question, strings.Join(docIDs, ",")))
	return hex.EncodeToString(sum[:])
}
