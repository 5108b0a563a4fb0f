package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port         int
	DBPath       string
	QdrantURL    string
	QdrantAPIKey string
	// Embedding
	EmbeddingProvider string
	EmbeddingDim      int
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIEmbedModel  string
	OllamaBaseURL     string
	OllamaEmbedModel  string
	// Recall tuning
	LexicalWeight   float64
	SemanticWeight  float64
	CacheSize       int
	CacheTTLSeconds int
	WarmQueriesPath string
	// Reranking
	AnthropicAPIKey  string
	AnthropicBaseURL string
	RerankModel      string
	// Service
	APIKey   string
	LogLevel string
}

func Load() (*Config, error) {
	provider := envStr("EMBEDDING_PROVIDER", "openai")

	// Dimension defaults track the default model of each provider.
	dim := envInt("EMBEDDING_DIM", 0)
	if dim == 0 {
		if provider == "ollama" {
			dim = 768
		} else {
			dim = 1536
		}
	}

	cfg := &Config{
		Port:              envInt("PORT", 8750),
		DBPath:            envStr("RECALL_DB_PATH", "/data/recall.db"),
		QdrantURL:         envStr("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:      envStr("QDRANT_API_KEY", ""),
		EmbeddingProvider: provider,
		EmbeddingDim:      dim,
		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     envStr("OPENAI_BASE_URL", ""),
		OpenAIEmbedModel:  envStr("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		OllamaBaseURL:     envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaEmbedModel:  envStr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		LexicalWeight:     envFloat("LEXICAL_WEIGHT", 0.3),
		SemanticWeight:    envFloat("SEMANTIC_WEIGHT", 0.7),
		CacheSize:         envInt("CACHE_SIZE", 100),
		CacheTTLSeconds:   envInt("CACHE_TTL_SECONDS", 300),
		WarmQueriesPath:   envStr("WARM_QUERIES_PATH", ""),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:  envStr("ANTHROPIC_BASE_URL", ""),
		RerankModel:       envStr("RERANK_MODEL", "claude-3-5-haiku-latest"),
		APIKey:            envStr("API_KEY", ""),
		LogLevel:          envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("RECALL_DB_PATH must not be empty")
	}
	if c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL must not be empty")
	}
	switch c.EmbeddingProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	case "ollama":
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
		}
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai or ollama, got %q", c.EmbeddingProvider)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	sum := c.LexicalWeight + c.SemanticWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("LEXICAL_WEIGHT + SEMANTIC_WEIGHT must equal 1.0, got %f", sum)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", c.CacheTTLSeconds)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
