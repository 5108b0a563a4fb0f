package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

type fakeEmbedder struct {
	vec      []float32
	err      error
	calls    int
	lastText string
}

func (f *fakeEmbedder) Embed(text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type capturedPoint struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
}

type ingestFixture struct {
	svc     *Service
	records *store.RecordStore
	lexical *store.LexicalStore
	embed   *fakeEmbedder

	mu         sync.Mutex
	upserts    []capturedPoint
	deletes    []string
	vectorDown bool
}

func (f *ingestFixture) capturedUpserts() []capturedPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedPoint(nil), f.upserts...)
}

func (f *ingestFixture) capturedDeletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	fix := &ingestFixture{
		embed: &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3, 0.4}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fix.mu.Lock()
		down := fix.vectorDown
		fix.mu.Unlock()

		switch {
		case down:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"status":{"error":"unavailable"}}`))
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"result":{},"status":"ok"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/points/delete"):
			var body struct {
				Points []string `json:"points"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			fix.mu.Lock()
			fix.deletes = append(fix.deletes, body.Points...)
			fix.mu.Unlock()
			w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
			var body struct {
				Points []capturedPoint `json:"points"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			fix.mu.Lock()
			fix.upserts = append(fix.upserts, body.Points...)
			fix.mu.Unlock()
			w.Write([]byte(`{"status":"ok"}`))
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

	qdrant := vectorstore.NewQdrantClient(srv.URL, "", 4)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	fix.records = store.NewRecordStore(db)
	fix.lexical = store.NewLexicalStore(db)
	fix.svc = NewService(fix.records, fix.embed, qdrant, vectorstore.NewCollectionManager(qdrant), logger)
	return fix
}

func pushOne(t *testing.T, fix *ingestFixture, rec models.MemoryRecord) *models.SyncResponse {
	t.Helper()
	resp, err := fix.svc.Sync(&models.SyncRequest{
		Workspace: "ws1",
		Records:   []models.MemoryRecord{rec},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	return resp
}

func TestSyncNewRecord(t *testing.T) {
	fix := newIngestFixture(t)

	resp := pushOne(t, fix, models.MemoryRecord{
		ID:         "r1",
		Content:    "never chase extended moves after three green days",
		Summary:    "chasing rule",
		RecordType: models.RecordTypeRule,
		Category:   "discipline",
		Symbols:    []string{"SPY"},
		Importance: 0.8,
	})
	if resp.Synced != 1 || resp.Skipped != 0 || resp.Failed != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	got, err := fix.records.GetByID("r1")
	if err != nil || got == nil {
		t.Fatalf("record not mirrored: %v, %+v", err, got)
	}
	if got.WorkspaceID != "ws1" {
		t.Fatalf("workspace not inherited: %q", got.WorkspaceID)
	}

	hits, err := fix.lexical.Search("chase", "ws1", 10, nil)
	if err != nil || len(hits) != 1 {
		t.Fatalf("record not indexed for search: %v, %+v", err, hits)
	}

	if fix.embed.lastText != "chasing rule\nnever chase extended moves after three green days" {
		t.Fatalf("embed text should lead with the summary, got %q", fix.embed.lastText)
	}

	points := fix.capturedUpserts()
	if len(points) != 1 || points[0].ID != "r1" {
		t.Fatalf("expected one vector point, got %+v", points)
	}
	payload := points[0].Payload
	if payload["workspace"] != "ws1" || payload["record_type"] != "rule" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload["importance"] != 0.8 || payload["category"] != "discipline" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	syms, ok := payload["symbols"].([]any)
	if !ok || len(syms) != 1 || syms[0] != "SPY" {
		t.Fatalf("unexpected symbols payload: %+v", payload["symbols"])
	}
}

func TestSyncUnchangedRecordSkips(t *testing.T) {
	fix := newIngestFixture(t)

	rec := models.MemoryRecord{
		ID:         "r1",
		Content:    "weekly review every sunday evening",
		Importance: 0.5,
	}

	if resp := pushOne(t, fix, rec); resp.Synced != 1 {
		t.Fatalf("first push: %+v", resp)
	}
	if resp := pushOne(t, fix, rec); resp.Skipped != 1 || resp.Synced != 0 {
		t.Fatalf("unchanged push should skip: %+v", resp)
	}
	if fix.embed.calls != 1 {
		t.Fatalf("unchanged content must not re-embed, calls = %d", fix.embed.calls)
	}

	rec.Content = "weekly review moved to saturday morning"
	if resp := pushOne(t, fix, rec); resp.Synced != 1 {
		t.Fatalf("changed push should sync: %+v", resp)
	}
	if fix.embed.calls != 2 {
		t.Fatalf("changed content must re-embed, calls = %d", fix.embed.calls)
	}
}

func TestSyncPrivateContent(t *testing.T) {
	fix := newIngestFixture(t)

	t.Run("entirely private records are not mirrored", func(t *testing.T) {
		resp := pushOne(t, fix, models.MemoryRecord{
			ID:      "p1",
			Content: "<private>account balance and broker login</private>",
		})
		if resp.Skipped != 1 || resp.Synced != 0 {
			t.Fatalf("expected skip: %+v", resp)
		}

		got, err := fix.records.GetByID("p1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != nil {
			t.Fatalf("private record must not be mirrored: %+v", got)
		}
		if fix.embed.calls != 0 {
			t.Fatal("private content must never reach the embedder")
		}
	})

	t.Run("private blocks are stripped before indexing", func(t *testing.T) {
		resp := pushOne(t, fix, models.MemoryRecord{
			ID:      "p2",
			Content: "size caps apply on fed days <private>down 40k this month</private> until volatility settles",
		})
		if resp.Synced != 1 {
			t.Fatalf("expected sync: %+v", resp)
		}

		got, err := fix.records.GetByID("p2")
		if err != nil || got == nil {
			t.Fatalf("get: %v, %+v", err, got)
		}
		if strings.Contains(got.Content, "40k") {
			t.Fatalf("private text leaked into mirror: %q", got.Content)
		}
		if !strings.Contains(got.Content, "size caps apply") {
			t.Fatalf("public text missing: %q", got.Content)
		}
		if strings.Contains(fix.embed.lastText, "40k") {
			t.Fatalf("private text leaked into embedding: %q", fix.embed.lastText)
		}
	})
}

func TestSyncValidation(t *testing.T) {
	fix := newIngestFixture(t)

	t.Run("workspace is required", func(t *testing.T) {
		if _, err := fix.svc.Sync(&models.SyncRequest{}); err == nil {
			t.Fatal("expected error for missing workspace")
		}
	})

	t.Run("bad records count as failed", func(t *testing.T) {
		resp, err := fix.svc.Sync(&models.SyncRequest{
			Workspace: "ws1",
			Records: []models.MemoryRecord{
				{Content: "no id"},
				{ID: "r1"},
				{ID: "r2", WorkspaceID: "ws2", Content: "wrong workspace"},
				{ID: "r3", Content: "this one is fine"},
			},
		})
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if resp.Failed != 3 || resp.Synced != 1 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})
}

func TestSyncNormalizesFields(t *testing.T) {
	fix := newIngestFixture(t)

	resp, err := fix.svc.Sync(&models.SyncRequest{
		Workspace: "ws1",
		Records: []models.MemoryRecord{
			{ID: "hot", Content: "importance above range", Importance: 1.7},
			{ID: "cold", Content: "importance below range", Importance: -0.2},
			{ID: "typed", Content: "no record type"},
		},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resp.Synced != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	hot, _ := fix.records.GetByID("hot")
	if hot.Importance != 1.0 {
		t.Fatalf("importance should clamp to 1.0, got %f", hot.Importance)
	}
	cold, _ := fix.records.GetByID("cold")
	if cold.Importance != 0.0 {
		t.Fatalf("importance should clamp to 0.0, got %f", cold.Importance)
	}
	typed, _ := fix.records.GetByID("typed")
	if typed.RecordType != models.RecordTypeNote {
		t.Fatalf("record type should default to note, got %q", typed.RecordType)
	}
}

func TestSyncDeletes(t *testing.T) {
	fix := newIngestFixture(t)

	pushOne(t, fix, models.MemoryRecord{ID: "r1", Content: "stale observation about rates"})

	resp, err := fix.svc.Sync(&models.SyncRequest{
		Workspace:  "ws1",
		DeletedIDs: []string{"r1", "never-existed"},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resp.Deleted != 2 {
		t.Fatalf("expected 2 deletions, got %+v", resp)
	}

	got, err := fix.records.GetByID("r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("record should be deleted: %+v", got)
	}

	hits, err := fix.lexical.Search("stale", "ws1", 10, nil)
	if err != nil || len(hits) != 0 {
		t.Fatalf("deleted record still searchable: %v, %+v", err, hits)
	}

	dels := fix.capturedDeletes()
	if len(dels) != 2 || dels[0] != "r1" {
		t.Fatalf("expected vector deletes forwarded, got %v", dels)
	}
}

func TestSyncDegradesWithoutVectorStore(t *testing.T) {
	t.Run("embed failure keeps the lexical mirror", func(t *testing.T) {
		fix := newIngestFixture(t)
		fix.embed.err = fmt.Errorf("provider down")

		resp := pushOne(t, fix, models.MemoryRecord{ID: "r1", Content: "lexical only fallback note"})
		if resp.Synced != 1 || resp.Failed != 0 {
			t.Fatalf("embed failure must not fail the record: %+v", resp)
		}

		hits, err := fix.lexical.Search("fallback", "ws1", 10, nil)
		if err != nil || len(hits) != 1 {
			t.Fatalf("record should still be searchable: %v, %+v", err, hits)
		}
		if len(fix.capturedUpserts()) != 0 {
			t.Fatal("no vector point should be written without an embedding")
		}
	})

	t.Run("unreachable qdrant still mirrors lexically", func(t *testing.T) {
		fix := newIngestFixture(t)
		fix.mu.Lock()
		fix.vectorDown = true
		fix.mu.Unlock()

		resp := pushOne(t, fix, models.MemoryRecord{ID: "r1", Content: "written during the outage"})
		if resp.Synced != 1 || resp.Failed != 0 {
			t.Fatalf("vector outage must not fail the record: %+v", resp)
		}
		if fix.embed.calls != 0 {
			t.Fatal("no collection means nothing to embed for")
		}

		hits, err := fix.lexical.Search("outage", "ws1", 10, nil)
		if err != nil || len(hits) != 1 {
			t.Fatalf("record should still be searchable: %v, %+v", err, hits)
		}
	})
}

func TestStripPrivate(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"no markers", "plain note text", "plain note text"},
		{"single block", "before <private>secret</private> after", "before  after"},
		{"multiple blocks", "<private>a</private>keep<private>b</private>", "keep"},
		{"multiline block", "keep\n<private>line one\nline two</private>\nrest", "keep\n\nrest"},
		{"unclosed tag stays", "note with <private>unclosed", "note with <private>unclosed"},
		{"surrounding whitespace trimmed", "  <private>x</private> body ", "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripPrivate(tc.in); got != tc.want {
				t.Fatalf("stripPrivate(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEntirelyPrivate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"fully private", "<private>everything</private>", true},
		{"private with whitespace", "  <private>everything</private>\n", true},
		{"mixed", "public <private>secret</private>", false},
		{"empty", "", true},
		{"plain", "nothing private here", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := entirelyPrivate(tc.in); got != tc.want {
				t.Fatalf("entirelyPrivate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
