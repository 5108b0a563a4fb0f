package ingest

import (
	"fmt"
	"log/slog"

	"github.com/quantdesk/recall/internal/embedding"
	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

// Service mirrors durable-store records into the local SQLite index and the
// remote vector collection. It is the only writer here; the recall engine
// never creates or deletes records.
type Service struct {
	records  *store.RecordStore
	embedder embedding.Embedder
	qdrant   *vectorstore.QdrantClient
	collMgr  *vectorstore.CollectionManager
	logger   *slog.Logger
}

func NewService(
	records *store.RecordStore,
	embedder embedding.Embedder,
	qdrant *vectorstore.QdrantClient,
	collMgr *vectorstore.CollectionManager,
	logger *slog.Logger,
) *Service {
	return &Service{
		records:  records,
		embedder: embedder,
		qdrant:   qdrant,
		collMgr:  collMgr,
		logger:   logger,
	}
}

// Sync applies one batch of mirror updates: upserts pushed records and
// removes deleted ids from both indexes. A failing record does not abort
// the batch; the response counts what happened.
func (s *Service) Sync(req *models.SyncRequest) (*models.SyncResponse, error) {
	if req.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}

	resp := &models.SyncResponse{}

	collection, err := s.collMgr.EnsureForWorkspace(req.Workspace)
	if err != nil {
		// Lexical mirroring still works without the vector side.
		s.logger.Warn("ensure collection failed, syncing lexical only",
			"error", err, "workspace", req.Workspace)
		collection = ""
	}

	for i := range req.Records {
		rec := req.Records[i]
		skipped, err := s.syncRecord(&rec, req.Workspace, collection)
		switch {
		case err != nil:
			s.logger.Warn("sync record failed", "error", err, "record", rec.ID)
			resp.Failed++
		case skipped:
			resp.Skipped++
		default:
			resp.Synced++
		}
	}

	for _, id := range req.DeletedIDs {
		if err := s.records.Delete(id); err != nil {
			s.logger.Warn("delete record failed", "error", err, "record", id)
			resp.Failed++
			continue
		}
		resp.Deleted++
	}
	if collection != "" && len(req.DeletedIDs) > 0 {
		if err := s.qdrant.DeletePoints(collection, req.DeletedIDs); err != nil {
			s.logger.Warn("delete points failed", "error", err, "workspace", req.Workspace)
		}
	}

	return resp, nil
}

// syncRecord validates and mirrors one record. Returns skipped=true when
// the content is unchanged or entirely private.
func (s *Service) syncRecord(rec *models.MemoryRecord, workspace, collection string) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("record without id")
	}
	if rec.WorkspaceID == "" {
		rec.WorkspaceID = workspace
	}
	if rec.WorkspaceID != workspace {
		return false, fmt.Errorf("record %s belongs to workspace %s", rec.ID, rec.WorkspaceID)
	}
	if rec.Content == "" {
		return false, fmt.Errorf("record %s has no content", rec.ID)
	}

	if entirelyPrivate(rec.Content) {
		return true, nil
	}
	rec.Content = stripPrivate(rec.Content)

	if rec.RecordType == "" {
		rec.RecordType = models.RecordTypeNote
	}
	if rec.Importance < 0 {
		rec.Importance = 0
	}
	if rec.Importance > 1 {
		rec.Importance = 1
	}

	hash := embedding.ContentHash(rec.Content)
	prev, err := s.records.ContentHash(rec.ID)
	if err != nil {
		s.logger.Warn("content hash lookup failed", "error", err, "record", rec.ID)
	}

	if err := s.records.Upsert(rec, hash); err != nil {
		return false, err
	}

	if prev == hash {
		// Unchanged content keeps its embedding and vector point. A stale
		// payload only weakens the server-side prefilter; the merge stage
		// re-checks importance against the mirror.
		return true, nil
	}
	if collection == "" {
		return false, nil
	}

	vec, err := s.embedder.Embed(embedText(rec))
	if err != nil {
		// Lexical mirror is updated; the vector point lags until the next
		// push for this record.
		s.logger.Warn("embed record failed, vector point stale", "error", err, "record", rec.ID)
		return false, nil
	}

	point := vectorstore.Point{
		ID:     rec.ID,
		Vector: vec,
		Payload: map[string]any{
			"workspace":   rec.WorkspaceID,
			"record_type": rec.RecordType,
			"importance":  rec.Importance,
		},
	}
	if rec.Category != "" {
		point.Payload["category"] = rec.Category
	}
	if len(rec.Symbols) > 0 {
		point.Payload["symbols"] = rec.Symbols
	}
	if err := s.qdrant.Upsert(collection, []vectorstore.Point{point}); err != nil {
		s.logger.Warn("vector upsert failed", "error", err, "record", rec.ID)
	}

	return false, nil
}

// embedText is what the semantic index sees for one record: the summary
// when present, then the content.
func embedText(rec *models.MemoryRecord) string {
	if rec.Summary != "" {
		return rec.Summary + "\n" + rec.Content
	}
	return rec.Content
}
