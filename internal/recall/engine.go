package recall

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/quantdesk/recall/internal/embedding"
	"github.com/quantdesk/recall/internal/models"
	"github.com/quantdesk/recall/internal/store"
	"github.com/quantdesk/recall/internal/vectorstore"
)

// Default method weights. The weighted contributions sum into the combined
// score, so they should add up to 1.
const (
	DefaultLexicalWeight  = 0.3
	DefaultSemanticWeight = 0.7
)

// candidateMultiplier oversamples each search method so the merger has a
// pool to rank.
const candidateMultiplier = 3

// rerankMinCandidates: with this many merged candidates or fewer, a model
// call cannot beat plain truncation and the engine skips it.
const rerankMinCandidates = 5

// Engine orchestrates hybrid recall over the local lexical mirror and the
// remote semantic index. The query cache is its only shared mutable state.
type Engine struct {
	records  *store.RecordStore
	lexical  *store.LexicalStore
	qdrant   *vectorstore.QdrantClient
	embedder embedding.Embedder
	reranker Reranker
	cache    *QueryCache
	warm     *WarmQueries

	warmGroup singleflight.Group

	lexicalWeight  float64
	semanticWeight float64

	logger *slog.Logger
}

// NewEngine wires the engine. reranker may be nil (plain truncation) and
// cache may be nil (caching permanently off). Zero weights fall back to
// the defaults.
func NewEngine(
	records *store.RecordStore,
	lexical *store.LexicalStore,
	qdrant *vectorstore.QdrantClient,
	embedder embedding.Embedder,
	reranker Reranker,
	cache *QueryCache,
	warm *WarmQueries,
	lexicalWeight, semanticWeight float64,
	logger *slog.Logger,
) *Engine {
	if lexicalWeight == 0 && semanticWeight == 0 {
		lexicalWeight = DefaultLexicalWeight
		semanticWeight = DefaultSemanticWeight
	}
	return &Engine{
		records:        records,
		lexical:        lexical,
		qdrant:         qdrant,
		embedder:       embedder,
		reranker:       reranker,
		cache:          cache,
		warm:           warm,
		lexicalWeight:  lexicalWeight,
		semanticWeight: semanticWeight,
		logger:         logger,
	}
}

// Recall runs the full pipeline for one query. It never returns an error:
// invalid input fails closed with an empty result, and a failing
// collaborator degrades to whatever the remaining collaborators produced.
func (e *Engine) Recall(query, workspaceID string, opts models.RecallOptions) *models.RecallResult {
	result := &models.RecallResult{Query: query}

	if err := validateQuery(query, workspaceID, opts); err != nil {
		e.logger.Warn("recall rejected", "error", err, "workspace", workspaceID)
		return result
	}

	key := cacheKey(query, workspaceID, opts)
	if opts.UseCache {
		if cached := e.cache.Get(key); cached != nil {
			return snapshot(cached, models.SourceCache, true)
		}
	}

	start := time.Now()

	variants := []string{query}
	if opts.ExpandQuery {
		variants = expandQuery(query)
	}

	lexLists, semLists := e.searchVariants(variants, workspaceID, opts)

	mergedMap := mergeScores(lexLists, semLists)
	entries := e.buildEntries(mergedMap, opts)

	result.Entries = e.applyRerank(query, entries, opts)
	result.TotalCandidates = len(mergedMap)
	result.SearchTimeMs = time.Since(start).Milliseconds()
	if opts.ExpandQuery {
		result.ExpandedQueries = variants
	}

	if opts.UseCache {
		e.cache.Set(key, snapshot(result, "", false))
	}

	e.touchRecords(result.Entries)

	return result
}

// WarmCache pre-populates the query cache for a workspace with its warm
// query set. Best effort: failures only log. Concurrent warms for the same
// workspace collapse into one run.
func (e *Engine) WarmCache(workspaceID string) {
	if workspaceID == "" || e.cache == nil {
		return
	}
	e.warmGroup.Do(workspaceID, func() (any, error) {
		opts := models.DefaultRecallOptions()
		for _, q := range e.warm.For(workspaceID) {
			res := e.Recall(q, workspaceID, opts)
			e.logger.Debug("warmed query",
				"workspace", workspaceID, "query", q, "entries", len(res.Entries))
		}
		return nil, nil
	})
}

// CacheSize reports the number of live cache entries.
func (e *Engine) CacheSize() int {
	return e.cache.Size()
}

// ClearCache drops every cached snapshot.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

func validateQuery(query, workspaceID string, opts models.RecallOptions) error {
	n := utf8.RuneCountInString(query)
	if n == 0 {
		return fmt.Errorf("empty query")
	}
	if n > models.MaxQueryLen {
		return fmt.Errorf("query too long: %d chars (max %d)", n, models.MaxQueryLen)
	}
	if workspaceID == "" {
		return fmt.Errorf("empty workspace id")
	}
	if opts.Limit < models.MinLimit || opts.Limit > models.MaxLimit {
		return fmt.Errorf("limit out of range: %d", opts.Limit)
	}
	if opts.MinImportance < 0 || opts.MinImportance > 1 {
		return fmt.Errorf("minImportance out of range: %.2f", opts.MinImportance)
	}
	return nil
}

// searchVariants runs the lexical and semantic halves of every variant
// concurrently and gathers the per-variant candidate lists.
func (e *Engine) searchVariants(variants []string, workspaceID string, opts models.RecallOptions) (lexLists, semLists [][]candidate) {
	fetch := opts.Limit * candidateMultiplier

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, v := range variants {
		wg.Add(2)
		go func(q string) {
			defer wg.Done()
			if hits := e.lexicalSearch(q, workspaceID, fetch, opts.Categories); len(hits) > 0 {
				mu.Lock()
				lexLists = append(lexLists, hits)
				mu.Unlock()
			}
		}(v)
		go func(q string) {
			defer wg.Done()
			if hits := e.semanticSearch(q, workspaceID, fetch, opts); len(hits) > 0 {
				mu.Lock()
				semLists = append(semLists, hits)
				mu.Unlock()
			}
		}(v)
	}
	wg.Wait()
	return lexLists, semLists
}

func (e *Engine) lexicalSearch(query, workspaceID string, limit int, categories []string) []candidate {
	hits, err := e.lexical.Search(query, workspaceID, limit, categories)
	if err != nil {
		e.logger.Warn("lexical search failed", "error", err, "workspace", workspaceID)
		return nil
	}
	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{id: h.ID, score: h.Score}
	}
	return out
}

// semanticSearch embeds the query and searches the workspace collection.
// An embedding failure skips the semantic half for this variant.
func (e *Engine) semanticSearch(query, workspaceID string, limit int, opts models.RecallOptions) []candidate {
	vec, err := e.embedder.Embed(query)
	if err != nil {
		e.logger.Warn("embedding failed, skipping semantic search",
			"error", err, "workspace", workspaceID)
		return nil
	}

	name := vectorstore.CollectionName(workspaceID)
	exists, err := e.qdrant.CollectionExists(name)
	if err != nil {
		e.logger.Warn("semantic search failed", "error", err, "workspace", workspaceID)
		return nil
	}
	if !exists {
		return nil
	}

	results, err := e.qdrant.Search(name, vec, limit, vectorstore.SearchFilter{
		MinImportance: opts.MinImportance,
		Categories:    opts.Categories,
		Symbols:       opts.Symbols,
	})
	if err != nil {
		e.logger.Warn("semantic search failed", "error", err, "workspace", workspaceID)
		return nil
	}

	out := make([]candidate, 0, len(results))
	for _, r := range results {
		score := r.Score
		if score < 0 {
			score = 0
		} else if score > 1 {
			score = 1
		}
		out = append(out, candidate{id: r.ID, score: score})
	}
	return out
}

// buildEntries hydrates merged candidates from the local mirror, applies
// the importance threshold and any category/symbol filters, and sorts by
// combined score weighted by importance. Ids missing locally are dropped;
// the mirror is the source of truth for record content.
func (e *Engine) buildEntries(mergedMap map[string]*merged, opts models.RecallOptions) []models.RecallEntry {
	if len(mergedMap) == 0 {
		return nil
	}

	ids := make([]string, 0, len(mergedMap))
	for id := range mergedMap {
		ids = append(ids, id)
	}
	records, err := e.records.GetByIDs(ids)
	if err != nil {
		e.logger.Warn("hydrate candidates failed", "error", err)
		return nil
	}

	entries := make([]models.RecallEntry, 0, len(records))
	for _, r := range records {
		if r.Importance < opts.MinImportance {
			continue
		}
		if !matchesFilters(r, opts.Categories, opts.Symbols) {
			continue
		}
		score, source := combinedScore(mergedMap[r.ID], e.lexicalWeight, e.semanticWeight)
		entries = append(entries, models.RecallEntry{
			Record:         *r,
			RelevanceScore: score,
			Source:         source,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelevanceScore*entries[i].Record.Importance >
			entries[j].RelevanceScore*entries[j].Record.Importance
	})
	return entries
}

// matchesFilters enforces category/symbol filters on hydrated records, in
// case a candidate arrived through the half that cannot filter natively.
func matchesFilters(r *models.MemoryRecord, categories, symbols []string) bool {
	if len(categories) > 0 {
		ok := false
		for _, c := range categories {
			if strings.EqualFold(r.Category, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(symbols) > 0 {
		ok := false
		for _, want := range symbols {
			for _, have := range r.Symbols {
				if strings.EqualFold(have, want) {
					ok = true
					break
				}
			}
			if ok {
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// applyRerank reorders entries through the configured reranker when it is
// worth a model call, falling back to plain truncation on any failure. The
// result never has fewer entries than plain truncation would yield.
func (e *Engine) applyRerank(query string, entries []models.RecallEntry, opts models.RecallOptions) []models.RecallEntry {
	if len(entries) <= rerankMinCandidates || !opts.Rerank || e.reranker == nil {
		return truncateEntries(entries, opts.Limit)
	}

	reranked, err := e.reranker.Rerank(query, entries, opts.Limit)
	if err != nil {
		e.logger.Warn("rerank failed, falling back to truncation", "error", err)
		return truncateEntries(entries, opts.Limit)
	}
	if len(reranked) < min(opts.Limit, len(entries)) {
		return truncateEntries(entries, opts.Limit)
	}
	return truncateEntries(reranked, opts.Limit)
}

func truncateEntries(entries []models.RecallEntry, limit int) []models.RecallEntry {
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

// snapshot copies a result with an independent entries slice, so the cache
// and callers cannot mutate each other's view. A non-empty source retags
// every entry.
func snapshot(res *models.RecallResult, source models.ResultSource, usedCache bool) *models.RecallResult {
	cp := *res
	cp.UsedCache = usedCache
	cp.Entries = make([]models.RecallEntry, len(res.Entries))
	copy(cp.Entries, res.Entries)
	if source != "" {
		for i := range cp.Entries {
			cp.Entries[i].Source = source
		}
	}
	cp.ExpandedQueries = append([]string(nil), res.ExpandedQueries...)
	return &cp
}

// touchRecords dispatches fire-and-forget access metric updates for the
// returned records. Never awaited; failures only log.
func (e *Engine) touchRecords(entries []models.RecallEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]string, len(entries))
	for i, en := range entries {
		ids[i] = en.Record.ID
	}
	go func() {
		for _, id := range ids {
			if err := e.records.IncrementAccess(id); err != nil {
				e.logger.Warn("access metrics update failed", "error", err, "record", id)
			}
		}
	}()
}
