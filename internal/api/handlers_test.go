package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantdesk/recall/internal/ingest"
	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/recall"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

type apiEmbedder struct {
	vec       []float32
	healthErr error
}

func (e *apiEmbedder) Embed(text string) ([]float32, error) { return e.vec, nil }
func (e *apiEmbedder) Dimensions() int                      { return len(e.vec) }
func (e *apiEmbedder) HealthCheck() error                   { return e.healthErr }

type apiFixture struct {
	router  http.Handler
	records *store.RecordStore
	embed   *apiEmbedder

	mu       sync.Mutex
	qdrantOK bool
}

func newAPIFixture(t *testing.T, apiKey string) *apiFixture {
	t.Helper()

	fix := &apiFixture{
		embed:    &apiEmbedder{vec: []float32{0.1, 0.2, 0.3, 0.4}},
		qdrantOK: true,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			fix.mu.Lock()
			ok := fix.qdrantOK
			fix.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("healthz check passed"))
		case strings.HasSuffix(r.URL.Path, "/points/search"):
			w.Write([]byte(`{"result":[]}`))
		default:
			w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	qdrant := vectorstore.NewQdrantClient(srv.URL, "", 4)

	fix.records = store.NewRecordStore(db)
	lexical := store.NewLexicalStore(db)

	engine := recall.NewEngine(
		fix.records, lexical, qdrant, fix.embed, nil,
		recall.NewQueryCache(10, time.Minute),
		&recall.WarmQueries{Default: []string{"trading rules"}},
		0.3, 0.7, logger,
	)
	svc := ingest.NewService(fix.records, fix.embed, qdrant, vectorstore.NewCollectionManager(qdrant), logger)

	fix.router = NewRouter(db, engine, svc, fix.records, fix.embed, qdrant, apiKey, logger)
	return fix
}

func (f *apiFixture) seed(t *testing.T, id, workspace, content string, importance float64) {
	t.Helper()
	err := f.records.Upsert(&models.MemoryRecord{
		ID:          id,
		WorkspaceID: workspace,
		Content:     content,
		RecordType:  models.RecordTypeRule,
		Importance:  importance,
	}, "hash-"+id)
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		fix := newAPIFixture(t, "")
		fix.seed(t, "r1", "ws1", "some note", 0.5)

		rec := fix.do(t, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[models.HealthResponse](t, rec)
		if resp.Status != "ok" {
			t.Fatalf("expected ok status, got %+v", resp)
		}
		if resp.Embedder.Status != "ok" || resp.Qdrant.Status != "ok" || resp.DB.Status != "ok" {
			t.Fatalf("expected all checks ok, got %+v", resp)
		}
		if resp.RecordCount != 1 {
			t.Fatalf("expected record count 1, got %d", resp.RecordCount)
		}
	})

	t.Run("degraded when embedder fails", func(t *testing.T) {
		fix := newAPIFixture(t, "")
		fix.embed.healthErr = errFake("embedding provider unreachable")

		rec := fix.do(t, http.MethodGet, "/health", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		resp := decodeBody[models.HealthResponse](t, rec)
		if resp.Status != "degraded" || resp.Embedder.Status != "error" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("degraded when qdrant fails", func(t *testing.T) {
		fix := newAPIFixture(t, "")
		fix.mu.Lock()
		fix.qdrantOK = false
		fix.mu.Unlock()

		rec := fix.do(t, http.MethodGet, "/health", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		resp := decodeBody[models.HealthResponse](t, rec)
		if resp.Qdrant.Status != "error" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("health needs no token", func(t *testing.T) {
		fix := newAPIFixture(t, "secret")
		rec := fix.do(t, http.MethodGet, "/health", "")
		if rec.Code == http.StatusUnauthorized {
			t.Fatal("health must be reachable without auth")
		}
	})
}

type errFake string

func (e errFake) Error() string { return string(e) }

func TestRecallEndpoint(t *testing.T) {
	fix := newAPIFixture(t, "")
	fix.seed(t, "n1", "ws1", "breakout entry checklist for the open", 0.9)

	t.Run("returns matching entries", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall",
			`{"query":"breakout checklist","workspace":"ws1","useCache":false}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}

		resp := decodeBody[models.RecallResult](t, rec)
		if len(resp.Entries) != 1 || resp.Entries[0].Record.ID != "n1" {
			t.Fatalf("unexpected entries: %+v", resp.Entries)
		}
		if resp.Entries[0].Source != models.SourceLocal {
			t.Fatalf("expected local source, got %s", resp.Entries[0].Source)
		}
		if resp.Entries[0].RelevanceScore <= 0 {
			t.Fatalf("expected positive score, got %f", resp.Entries[0].RelevanceScore)
		}
		if resp.Query != "breakout checklist" || resp.UsedCache {
			t.Fatalf("unexpected result meta: %+v", resp)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall", `{"workspace":"ws1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["error"] != "query is required" {
			t.Fatalf("unexpected error: %+v", resp)
		}
	})

	t.Run("missing workspace", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall", `{"query":"breakout"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall", `{"query":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestRecallPromptEndpoint(t *testing.T) {
	fix := newAPIFixture(t, "")
	fix.seed(t, "n1", "ws1", "never average into losing futures positions", 0.9)

	t.Run("renders prompt block", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall/prompt",
			`{"query":"losing positions","workspace":"ws1","useCache":false}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Fatalf("unexpected content type %q", ct)
		}
		body := rec.Body.String()
		if !strings.HasPrefix(body, "# Recalled notes") {
			t.Fatalf("unexpected body: %q", body)
		}
		if !strings.Contains(body, "never average into losing futures positions") {
			t.Fatalf("note content missing from prompt: %q", body)
		}
	})

	t.Run("no matches renders empty", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall/prompt",
			`{"query":"zzzunmatched","workspace":"ws1","useCache":false}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Fatalf("expected empty body, got %q", rec.Body.String())
		}
	})

	t.Run("missing query", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/recall/prompt", `{"workspace":"ws1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBearerAuth(t *testing.T) {
	t.Run("api routes require the token", func(t *testing.T) {
		fix := newAPIFixture(t, "secret")

		rec := fix.do(t, http.MethodPost, "/api/recall", `{"query":"q","workspace":"ws1"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without token, got %d", rec.Code)
		}

		rec = fix.do(t, http.MethodPost, "/api/recall", `{"query":"q","workspace":"ws1"}`,
			"Authorization", "Bearer wrong")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
		}

		rec = fix.do(t, http.MethodPost, "/api/recall", `{"query":"q","workspace":"ws1"}`,
			"Authorization", "Bearer secret")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("no configured key disables auth", func(t *testing.T) {
		fix := newAPIFixture(t, "")
		rec := fix.do(t, http.MethodPost, "/api/recall", `{"query":"q","workspace":"ws1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRecordEndpoints(t *testing.T) {
	fix := newAPIFixture(t, "")

	t.Run("sync mirrors records", func(t *testing.T) {
		body, _ := json.Marshal(models.SyncRequest{
			Workspace: "ws1",
			Records: []models.MemoryRecord{
				{ID: "r1", Content: "reduce size into fomc", Importance: 0.7},
			},
		})
		rec := fix.do(t, http.MethodPost, "/api/records/sync", string(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[models.SyncResponse](t, rec)
		if resp.Synced != 1 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("sync requires workspace", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/records/sync", `{"records":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("sync rejects empty batch", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/records/sync", `{"workspace":"ws1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["error"] != "nothing to sync" {
			t.Fatalf("unexpected error: %+v", resp)
		}
	})

	t.Run("get returns a mirrored record", func(t *testing.T) {
		rec := fix.do(t, http.MethodGet, "/api/records/r1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decodeBody[models.MemoryRecord](t, rec)
		if got.ID != "r1" || got.Content != "reduce size into fomc" {
			t.Fatalf("unexpected record: %+v", got)
		}
	})

	t.Run("get unknown id", func(t *testing.T) {
		rec := fix.do(t, http.MethodGet, "/api/records/absent", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCacheEndpoints(t *testing.T) {
	fix := newAPIFixture(t, "")
	fix.seed(t, "n1", "ws1", "gap fill statistics for index futures", 0.8)

	stats := func() models.CacheStats {
		rec := fix.do(t, http.MethodGet, "/api/cache/stats", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("stats: expected 200, got %d", rec.Code)
		}
		return decodeBody[models.CacheStats](t, rec)
	}

	if got := stats(); got.Size != 0 {
		t.Fatalf("expected empty cache, got %+v", got)
	}

	rec := fix.do(t, http.MethodPost, "/api/recall", `{"query":"gap fill","workspace":"ws1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("recall: expected 200, got %d", rec.Code)
	}
	if got := stats(); got.Size != 1 {
		t.Fatalf("expected cached result, got %+v", got)
	}

	rec = fix.do(t, http.MethodDelete, "/api/cache", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", rec.Code)
	}
	if got := stats(); got.Size != 0 {
		t.Fatalf("expected cleared cache, got %+v", got)
	}
}

func TestWarmEndpoint(t *testing.T) {
	fix := newAPIFixture(t, "")

	t.Run("accepted", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/warm", `{"workspace":"ws1"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["status"] != "warming" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("workspace required", func(t *testing.T) {
		rec := fix.do(t, http.MethodPost, "/api/warm", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
