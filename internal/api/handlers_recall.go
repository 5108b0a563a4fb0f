package api

import (
	"net/http"

	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/recall"
)

type RecallHandler struct {
	engine *recall.Engine
}

func NewRecallHandler(engine *recall.Engine) *RecallHandler {
	return &RecallHandler{engine: engine}
}

// Recall handles POST /api/recall
func (h *RecallHandler) Recall(w http.ResponseWriter, r *http.Request) {
	var req models.RecallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}

	resp := h.engine.Recall(req.Query, req.Workspace, req.Options())
	writeJSON(w, http.StatusOK, resp)
}

// Prompt handles POST /api/recall/prompt. It runs the same recall as
// POST /api/recall but renders the entries as a prompt block instead of JSON.
func (h *RecallHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	var req models.RecallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}

	result := h.engine.Recall(req.Query, req.Workspace, req.Options())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(recall.FormatForPrompt(result.Entries)))
}

// Warm handles POST /api/warm. Warming runs in the background so callers
// are not held while warm queries fan out.
func (h *RecallHandler) Warm(w http.ResponseWriter, r *http.Request) {
	var req models.WarmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}

	go h.engine.WarmCache(req.Workspace)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "warming"})
}

// CacheStats handles GET /api/cache/stats
func (h *RecallHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.CacheStats{Size: h.engine.CacheSize()})
}

// CacheClear handles DELETE /api/cache
func (h *RecallHandler) CacheClear(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}
