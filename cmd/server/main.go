package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantdesk/recall/internal/api"
	"github.com/quantdesk/recall/internal/config"
	"github.com/quantdesk/recall/internal/embedding"
	"github.com/quantdesk/recall/internal/ingest"
	"github.com/quantdesk/recall/internal/recall"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// SQLite mirror
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Stores
	recordStore := store.NewRecordStore(db)
	lexicalStore := store.NewLexicalStore(db)
	embCacheStore := store.NewEmbeddingCacheStore(db)

	// External services
	qdrantClient := vectorstore.NewQdrantClient(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.EmbeddingDim)
	collMgr := vectorstore.NewCollectionManager(qdrantClient)

	// Embedding provider with content-hash cache
	var provider embedding.Embedder
	var probe interface{ HealthCheck() error }
	var embedModel string
	switch cfg.EmbeddingProvider {
	case "ollama":
		c := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaEmbedModel, cfg.EmbeddingDim)
		provider, probe, embedModel = c, c, cfg.OllamaEmbedModel
	default:
		c := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel, cfg.EmbeddingDim)
		provider, probe, embedModel = c, c, cfg.OpenAIEmbedModel
	}
	embedder := embedding.NewCachedEmbedder(provider, embCacheStore, embedModel)

	// Reranker is optional; without a key, recall falls back to score order.
	var reranker recall.Reranker
	if cfg.AnthropicAPIKey != "" {
		reranker = recall.NewLLMReranker(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL, cfg.RerankModel)
		logger.Info("llm reranker enabled", "model", cfg.RerankModel)
	}

	// Query cache and warm queries
	queryCache := recall.NewQueryCache(cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	warmQueries, err := recall.LoadWarmQueries(cfg.WarmQueriesPath)
	if err != nil {
		logger.Warn("failed to load warm queries, using defaults", "error", err, "path", cfg.WarmQueriesPath)
		warmQueries, _ = recall.LoadWarmQueries("")
	}

	// Recall engine
	engine := recall.NewEngine(
		recordStore, lexicalStore, qdrantClient, embedder,
		reranker, queryCache, warmQueries,
		cfg.LexicalWeight, cfg.SemanticWeight, logger,
	)

	// Mirror ingest
	ingestSvc := ingest.NewService(recordStore, embedder, qdrantClient, collMgr, logger)

	if err := qdrantClient.HealthCheck(); err != nil {
		logger.Warn("qdrant not available at startup, will retry on first use", "error", err)
	}

	// Router
	router := api.NewRouter(db, engine, ingestSvc, recordStore, probe, qdrantClient, cfg.APIKey, logger)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("recall server starting", "addr", addr, "provider", cfg.EmbeddingProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
