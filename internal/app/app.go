package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/handlers"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/services/cache"
	"github.com/contextq/contextq/internal/services/documents"
	"github.com/contextq/contextq/internal/services/embeddings"
	"github.com/contextq/contextq/internal/services/history"
	"github.com/contextq/contextq/internal/services/llm"
	"github.com/contextq/contextq/internal/services/rag"
	"github.com/contextq/contextq/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badger.Manager

	// Pipeline services
	Generator        interfaces.TextGenerator
	EmbeddingService interfaces.EmbeddingService
	HistoryService   interfaces.HistoryService
	DocumentService  *documents.Service
	RAGService       *rag.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	ChatHandler     *handlers.ChatHandler
	DocumentHandler *handlers.DocumentHandler
}

// New wires the application from configuration. Construction order follows
// the dependency chain: storage, provider clients, caches, pipeline,
// handlers.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	generator, err := llm.NewTextGenerator(ctx, config, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize text generator: %w", err)
	}

	// Embeddings always run on the Gemini API. When Gemini is also the
	// generation provider the client is shared.
	var genaiClient *genai.Client
	if geminiService, ok := generator.(*llm.GeminiService); ok {
		genaiClient = geminiService.Client()
	} else {
		genaiClient, err = llm.NewGenaiClient(ctx, &config.Gemini)
		if err != nil {
			storageManager.Close()
			return nil, err
		}
	}

	embeddingCache, err := cache.NewEmbeddingCache(config.Cache.EmbeddingEntries, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}

	responseTTL, err := time.ParseDuration(config.Cache.ResponseTTL)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("invalid response cache ttl '%s': %w", config.Cache.ResponseTTL, err)
	}
	responseCache, err := cache.NewResponseCache(config.Cache.ResponseEntries, responseTTL, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize response cache: %w", err)
	}

	embeddingService, err := embeddings.NewService(genaiClient, &config.Embeddings, embeddingCache, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	historyService := history.NewService(&config.History, &config.LLM, storageManager.MessageStorage(), generator, logger)

	documentService := documents.NewService(
		&config.Chunking,
		documents.NewExtractor(logger),
		documents.NewChunker(&config.Chunking),
		embeddingService,
		storageManager.VectorStorage(),
		storageManager.DocumentStorage(),
		logger,
	)

	analyzer, err := rag.NewAnalyzer(&config.LLM, generator, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize query analyzer: %w", err)
	}

	ragService := rag.NewService(
		config,
		analyzer,
		rag.NewRetriever(&config.RAG, embeddingService, storageManager.VectorStorage(), logger),
		rag.NewFilter(&config.RAG, logger),
		rag.NewAssembler(&config.RAG),
		generator,
		historyService,
		storageManager.DocumentStorage(),
		responseCache,
		logger,
	)

	application := &App{
		Config:           config,
		Logger:           logger,
		StorageManager:   storageManager,
		Generator:        generator,
		EmbeddingService: embeddingService,
		HistoryService:   historyService,
		DocumentService:  documentService,
		RAGService:       ragService,
		APIHandler:       handlers.NewAPIHandler(),
		ChatHandler:      handlers.NewChatHandler(ragService, historyService, logger),
		DocumentHandler:  handlers.NewDocumentHandler(documentService, config.Chunking.MaxFileSize, logger),
	}

	logger.Info().
		Str("provider", string(config.LLM.Provider)).
		Str("model", generator.ModelName()).
		Str("embedding_model", embeddingService.ModelName()).
		Int("embedding_dimension", embeddingService.Dimension()).
		Msg("Application initialized")

	return application, nil
}

// Close releases application resources
func (a *App) Close() error {
	if a.Generator != nil {
		a.Generator.Close()
	}
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}
