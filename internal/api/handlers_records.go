package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantdesk/recall/internal/ingest"
	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
)

type RecordHandler struct {
	svc     *ingest.Service
	records *store.RecordStore
}

func NewRecordHandler(svc *ingest.Service, records *store.RecordStore) *RecordHandler {
	return &RecordHandler{svc: svc, records: records}
}

// Sync handles POST /api/records/sync
func (h *RecordHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Workspace == "" {
		writeError(w, http.StatusBadRequest, "workspace is required")
		return
	}
	if len(req.Records) == 0 && len(req.DeletedIDs) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to sync")
		return
	}

	resp, err := h.svc.Sync(&req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/records/{id}
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.records.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
