package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Storage     StorageConfig    `toml:"storage"`
	LLM         LLMConfig        `toml:"llm"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	RAG         RAGConfig        `toml:"rag"`
	Chunking    ChunkingConfig   `toml:"chunking"`
	History     HistoryConfig    `toml:"history"`
	Cache       CacheConfig      `toml:"cache"`
}

type ServerConfig struct {
	Port      int     `toml:"port"`
	Host      string  `toml:"host"`
	RateLimit float64 `toml:"rate_limit"` // Requests per second per client IP
	RateBurst int     `toml:"rate_burst"` // Burst allowance for the rate limiter
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// LLMProvider identifies which AI provider backs text generation
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig selects the generation provider and pipeline LLM behavior
type LLMConfig struct {
	Provider            LLMProvider `toml:"provider"`               // "claude" or "gemini"
	AnalysisTimeout     string      `toml:"analysis_timeout"`       // Query analysis timeout, e.g. "10s"
	AnalysisModel       string      `toml:"analysis_model"`         // Model for query analysis (empty = provider default model)
	MaxSubQueries       int         `toml:"max_sub_queries"`        // Sub-queries kept from decomposition
	SubQueryMaxLength   int         `toml:"sub_query_max_length"`   // Each sub-query clipped to this many chars
	GenerationMaxTokens int         `toml:"generation_max_tokens"`  // Max tokens for answer generation
	GenerationTemp      float64     `toml:"generation_temperature"` // Temperature for document-grounded answers
	GeneralTemp         float64     `toml:"general_temperature"`    // Temperature for general conversation answers
	SummaryMaxTokens    int         `toml:"summary_max_tokens"`     // Max tokens for conversation summaries
	SummaryTemp         float64     `toml:"summary_temperature"`    // Temperature for conversation summaries
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey  string `toml:"api_key"` // Or ANTHROPIC_API_KEY / CONTEXTQ_ANTHROPIC_API_KEY
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"` // Request timeout, e.g. "2m"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"` // Or GEMINI_API_KEY / CONTEXTQ_GEMINI_API_KEY
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// EmbeddingsConfig contains embedding generation configuration
type EmbeddingsConfig struct {
	Model     string `toml:"model"`      // Embedding model name
	Dimension int    `toml:"dimension"`  // Output vector dimension
	BatchSize int    `toml:"batch_size"` // Texts per embedding API call
	Retries   int    `toml:"retries"`    // Retry attempts for transient failures
}

// RAGConfig tunes the retrieval pipeline
type RAGConfig struct {
	RetrievalTopK     int     `toml:"retrieval_top_k"`     // Chunks retrieved for a single-query search
	DecompositionTopK int     `toml:"decomposition_top_k"` // Chunks retrieved per sub-query
	MinRelevanceScore float64 `toml:"min_relevance_score"` // Minimum similarity for a chunk to be used
	SourceTextLimit   int     `toml:"source_text_limit"`   // Source passage truncation length in chars
	QuestionMaxLength int     `toml:"question_max_length"` // Max accepted question length
}

// ChunkingConfig contains document chunking configuration
type ChunkingConfig struct {
	ChunkSize    int `toml:"chunk_size"`    // Target chunk size in chars
	ChunkOverlap int `toml:"chunk_overlap"` // Overlap between consecutive chunks
	MaxChunks    int `toml:"max_chunks"`    // Max chunks per document
	MaxFileSize  int `toml:"max_file_size"` // Max upload size in bytes
}

// HistoryConfig contains chat history and summarization configuration
type HistoryConfig struct {
	MaxContextMessages int `toml:"max_context_messages"` // Recent messages included in prompt context
	SummaryThreshold   int `toml:"summary_threshold"`    // Message count that triggers summarization
	SummaryInterval    int `toml:"summary_interval"`     // Refresh summary every N messages past threshold
	SummaryWindow      int `toml:"summary_window"`       // Messages fed to the summarizer
}

// CacheConfig contains bounded cache sizing
type CacheConfig struct {
	EmbeddingEntries int    `toml:"embedding_entries"` // Max cached query embeddings
	ResponseEntries  int    `toml:"response_entries"`  // Max cached responses
	ResponseTTL      string `toml:"response_ttl"`      // Response cache TTL, e.g. "1h"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here; only deployment-facing settings
// need to appear in contextq.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:      8080,
			Host:      "localhost",
			RateLimit: 5,
			RateBurst: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		LLM: LLMConfig{
			Provider:            LLMProviderClaude,
			AnalysisTimeout:     "10s",
			MaxSubQueries:       3,
			SubQueryMaxLength:   500,
			GenerationMaxTokens: 2048,
			GenerationTemp:      0.2,
			GeneralTemp:         0.7,
			SummaryMaxTokens:    200,
			SummaryTemp:         0.3,
		},
		Claude: ClaudeConfig{
			Model:   "claude-sonnet-4-20250514",
			Timeout: "2m",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "2m",
		},
		Embeddings: EmbeddingsConfig{
			Model:     "gemini-embedding-001",
			Dimension: 768,
			BatchSize: 64,
			Retries:   3,
		},
		RAG: RAGConfig{
			RetrievalTopK:     10,
			DecompositionTopK: 3,
			MinRelevanceScore: 0.34,
			SourceTextLimit:   500,
			QuestionMaxLength: 2000,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1500,
			ChunkOverlap: 200,
			MaxChunks:    500,
			MaxFileSize:  10 * 1024 * 1024,
		},
		History: HistoryConfig{
			MaxContextMessages: 10,
			SummaryThreshold:   10,
			SummaryInterval:    5,
			SummaryWindow:      20,
		},
		Cache: CacheConfig{
			EmbeddingEntries: 4096,
			ResponseEntries:  512,
			ResponseTTL:      "1h",
		},
	}
}

// LoadFromFiles loads configuration from one or more TOML files, with later
// files overriding earlier ones, then applies environment overrides.
// Missing files are skipped so a bare environment starts with defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONTEXTQ_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("CONTEXTQ_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONTEXTQ_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("CONTEXTQ_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if badgerPath := os.Getenv("CONTEXTQ_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if provider := os.Getenv("CONTEXTQ_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = LLMProvider(provider)
	}

	// API keys resolve from the CONTEXTQ_ prefix first, then the
	// conventional provider variables, then the config file value.
	if key := os.Getenv("CONTEXTQ_ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("CONTEXTQ_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = key
	}
}

// validateConfig rejects configurations that cannot produce a working pipeline
func validateConfig(config *Config) error {
	switch config.LLM.Provider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("invalid llm provider %q: must be %q or %q",
			config.LLM.Provider, LLMProviderClaude, LLMProviderGemini)
	}

	if config.RAG.MinRelevanceScore < -1 || config.RAG.MinRelevanceScore > 1 {
		return fmt.Errorf("rag.min_relevance_score %.2f outside similarity range [-1, 1]", config.RAG.MinRelevanceScore)
	}
	if config.RAG.RetrievalTopK <= 0 {
		return fmt.Errorf("rag.retrieval_top_k must be positive, got %d", config.RAG.RetrievalTopK)
	}
	if config.RAG.DecompositionTopK <= 0 {
		return fmt.Errorf("rag.decomposition_top_k must be positive, got %d", config.RAG.DecompositionTopK)
	}
	if config.Chunking.ChunkOverlap >= config.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			config.Chunking.ChunkOverlap, config.Chunking.ChunkSize)
	}

	return nil
}
