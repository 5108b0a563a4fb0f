package models

// ResultSource tags where a recall entry came from.
type ResultSource string

const (
	SourceCache  ResultSource = "cache"
	SourceLocal  ResultSource = "local"
	SourceRemote ResultSource = "remote"
)

// Bounds and defaults for recall options.
const (
	MaxQueryLen          = 1000
	MinLimit             = 1
	MaxLimit             = 100
	DefaultLimit         = 10
	DefaultMinImportance = 0.3
)

// RecallOptions are the per-call knobs for a recall. Start from
// DefaultRecallOptions: a zero Limit is out of range and fails closed.
type RecallOptions struct {
	Limit         int
	MinImportance float64
	UseCache      bool
	ExpandQuery   bool
	Rerank        bool
	Categories    []string
	Symbols       []string
}

// DefaultRecallOptions returns the documented defaults: limit 10,
// minImportance 0.3, caching on, expansion off, reranking on.
func DefaultRecallOptions() RecallOptions {
	return RecallOptions{
		Limit:         DefaultLimit,
		MinImportance: DefaultMinImportance,
		UseCache:      true,
		Rerank:        true,
	}
}

// RecallEntry is a single scored result.
type RecallEntry struct {
	Record         MemoryRecord `json:"record"`
	RelevanceScore float64      `json:"relevanceScore"`
	Source         ResultSource `json:"source"`
}

// RecallResult is the outcome of one recall. A failed-closed call has no
// entries and SearchTimeMs 0.
type RecallResult struct {
	Entries         []RecallEntry `json:"entries"`
	TotalCandidates int           `json:"totalCandidates"`
	SearchTimeMs    int64         `json:"searchTimeMs"`
	UsedCache       bool          `json:"usedCache"`
	Query           string        `json:"query"`
	ExpandedQueries []string      `json:"expandedQueries,omitempty"`
}

// RecallRequest is the payload for POST /api/recall. Omitted optional
// fields take the documented defaults.
type RecallRequest struct {
	Query         string   `json:"query"`
	Workspace     string   `json:"workspace"`
	Limit         *int     `json:"limit,omitempty"`
	MinImportance *float64 `json:"minImportance,omitempty"`
	UseCache      *bool    `json:"useCache,omitempty"`
	ExpandQuery   *bool    `json:"expandQuery,omitempty"`
	Rerank        *bool    `json:"rerank,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Symbols       []string `json:"symbols,omitempty"`
}

// Options resolves the request's optional fields against the defaults.
func (r *RecallRequest) Options() RecallOptions {
	opts := DefaultRecallOptions()
	if r.Limit != nil {
		opts.Limit = *r.Limit
	}
	if r.MinImportance != nil {
		opts.MinImportance = *r.MinImportance
	}
	if r.UseCache != nil {
		opts.UseCache = *r.UseCache
	}
	if r.ExpandQuery != nil {
		opts.ExpandQuery = *r.ExpandQuery
	}
	if r.Rerank != nil {
		opts.Rerank = *r.Rerank
	}
	opts.Categories = r.Categories
	opts.Symbols = r.Symbols
	return opts
}

// SyncRequest is the payload for POST /api/records/sync: the durable
// store pushing mirror updates.
type SyncRequest struct {
	Workspace  string         `json:"workspace"`
	Records    []MemoryRecord `json:"records"`
	DeletedIDs []string       `json:"deletedIds,omitempty"`
}

// SyncResponse is returned from POST /api/records/sync.
type SyncResponse struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// WarmRequest is the payload for POST /api/warm.
type WarmRequest struct {
	Workspace string `json:"workspace"`
}

// CacheStats is returned from GET /api/cache/stats.
type CacheStats struct {
	Size int `json:"size"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status      string       `json:"status"`
	Embedder    ServiceCheck `json:"embedder"`
	Qdrant      ServiceCheck `json:"qdrant"`
	DB          ServiceCheck `json:"db"`
	RecordCount int          `json:"recordCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
