package models

// MemoryRecord is a research note mirrored from the durable note store.
// Records are owned upstream: the recall engine reads them and bumps
// access metadata, but never creates or deletes one on its own.
type MemoryRecord struct {
	ID           string   `json:"id"`
	WorkspaceID  string   `json:"workspaceId"`
	Content      string   `json:"content"`
	Summary      string   `json:"summary,omitempty"`
	RecordType   string   `json:"recordType"`
	Category     string   `json:"category,omitempty"`
	Symbols      []string `json:"symbols,omitempty"`
	Importance   float64  `json:"importance"`
	Protection   int      `json:"protection"`
	CreatedAt    int64    `json:"createdAt"`
	AccessCount  int      `json:"accessCount"`
	LastAccessAt *int64   `json:"lastAccessAt,omitempty"`
}

// Common record type tags. The field is free form; these are the tags the
// dashboard writes today.
const (
	RecordTypeRule    = "rule"
	RecordTypeWarning = "warning"
	RecordTypeInsight = "insight"
	RecordTypeNote    = "note"
)

// Protection tiers control deletion eligibility in the durable store.
// The recall engine carries the value without enforcing it.
const (
	ProtectionDisposable = 0
	ProtectionStandard   = 1
	ProtectionPinned     = 2
)

// EmbeddingCacheEntry stores a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string `json:"contentHash"`
	Embedding   []byte `json:"embedding"`
	Dimension   int    `json:"dimension"`
	Model       string `json:"model"`
	UpdatedAt   int64  `json:"updatedAt"`
}
