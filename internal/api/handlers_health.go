package api

import (
	"net/http"

	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

// healthChecker is implemented by embedding providers that can probe their
// backing service. The caching wrapper does not, so the raw provider is
// passed here.
type healthChecker interface {
	HealthCheck() error
}

type HealthHandler struct {
	db       *store.DB
	embedder healthChecker
	qdrant   *vectorstore.QdrantClient
}

func NewHealthHandler(db *store.DB, embedder healthChecker, qdrant *vectorstore.QdrantClient) *HealthHandler {
	return &HealthHandler{db: db, embedder: embedder, qdrant: qdrant}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
	}

	// Check embedding provider
	if err := h.embedder.HealthCheck(); err != nil {
		resp.Embedder = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Embedder = models.ServiceCheck{Status: "ok"}
	}

	// Check Qdrant
	if err := h.qdrant.HealthCheck(); err != nil {
		resp.Qdrant = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Qdrant = models.ServiceCheck{Status: "ok"}
	}

	// Check DB
	count, err := h.db.RecordCount()
	if err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.RecordCount = count
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
