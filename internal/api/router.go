package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/quantdesk/recall/internal/ingest"
	"github.com/quantdesk/recall/internal/recall"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	engine *recall.Engine,
	ingestSvc *ingest.Service,
	records *store.RecordStore,
	embedder healthChecker,
	qdrant *vectorstore.QdrantClient,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db, embedder, qdrant)
	recallH := NewRecallHandler(engine)
	recordH := NewRecordHandler(ingestSvc, records)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/recall", recallH.Recall)
		r.Post("/recall/prompt", recallH.Prompt)
		r.Post("/warm", recallH.Warm)

		r.Get("/cache/stats", recallH.CacheStats)
		r.Delete("/cache", recallH.CacheClear)

		r.Route("/records", func(r chi.Router) {
			r.Post("/sync", recordH.Sync)
			r.Get("/{id}", recordH.Get)
		})
	})

	return r
}
