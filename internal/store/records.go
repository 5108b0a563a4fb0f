package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quantdesk/recall/internal/models"
)

// recordColumns is the canonical column list for all SELECT queries.
// Order must match scanOne/scanMany.
const recordColumns = `id, workspace_id, content, summary, record_type, category,
	symbols, importance, protection, access_count,
	created_at, last_access_at`

// RecordStore handles mirrored record reads and sync writes on SQLite.
type RecordStore struct {
	db *DB
}

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Upsert writes a mirrored record, replacing any previous version with the
// same id. Access metadata survives a conflict: those counters belong to
// this mirror, not to the durable store pushing the sync.
func (s *RecordStore) Upsert(r *models.MemoryRecord, contentHash string) error {
	symbolsJSON, _ := json.Marshal(r.Symbols)

	now := time.Now().Unix()
	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO records (
			id, workspace_id, content, summary, record_type, category,
			symbols, importance, protection, access_count, content_hash,
			created_at, updated_at, last_access_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			content = excluded.content,
			summary = excluded.summary,
			record_type = excluded.record_type,
			category = excluded.category,
			symbols = excluded.symbols,
			importance = excluded.importance,
			protection = excluded.protection,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
	`,
		r.ID, r.WorkspaceID, r.Content, nullIfEmpty(r.Summary), r.RecordType,
		nullIfEmpty(r.Category), string(symbolsJSON), r.Importance, r.Protection,
		r.AccessCount, contentHash, createdAt, now, r.LastAccessAt,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// GetByID fetches a single record by ID. Returns nil, nil when absent.
func (s *RecordStore) GetByID(id string) (*models.MemoryRecord, error) {
	r, err := s.scanOne(s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM records WHERE id = ?`, recordColumns), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetByIDs fetches records for a set of ids in one query. Missing ids are
// simply absent from the result.
func (s *RecordStore) GetByIDs(ids []string) ([]*models.MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM records WHERE id IN (%s)`,
			recordColumns, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("get records by ids: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// ContentHash returns the stored content hash for a record, or "" when the
// record is not mirrored yet.
func (s *RecordStore) ContentHash(id string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT content_hash FROM records WHERE id = ?", id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get content hash: %w", err)
	}
	return hash, nil
}

// IncrementAccess bumps a record's access count and last_access_at timestamp.
func (s *RecordStore) IncrementAccess(id string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		UPDATE records SET access_count = access_count + 1, last_access_at = ?, updated_at = ?
		WHERE id = ?
	`, now, now, id)
	return err
}

// Delete removes a mirrored record. Ids already gone are a no-op: the
// durable store may replay deletions.
func (s *RecordStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// CountByWorkspace returns the number of mirrored records in a workspace.
func (s *RecordStore) CountByWorkspace(workspaceID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM records WHERE workspace_id = ?", workspaceID).Scan(&count)
	return count, err
}

func (s *RecordStore) scanOne(row *sql.Row) (*models.MemoryRecord, error) {
	var r models.MemoryRecord
	var summary, category, symbolsJSON sql.NullString
	var lastAccessAt sql.NullInt64

	err := row.Scan(
		&r.ID, &r.WorkspaceID, &r.Content, &summary, &r.RecordType, &category,
		&symbolsJSON, &r.Importance, &r.Protection, &r.AccessCount,
		&r.CreatedAt, &lastAccessAt,
	)
	if err != nil {
		return nil, err
	}

	populateRecordNullables(&r, summary, category, symbolsJSON, lastAccessAt)
	return &r, nil
}

func (s *RecordStore) scanMany(rows *sql.Rows) ([]*models.MemoryRecord, error) {
	var result []*models.MemoryRecord
	for rows.Next() {
		var r models.MemoryRecord
		var summary, category, symbolsJSON sql.NullString
		var lastAccessAt sql.NullInt64

		if err := rows.Scan(
			&r.ID, &r.WorkspaceID, &r.Content, &summary, &r.RecordType, &category,
			&symbolsJSON, &r.Importance, &r.Protection, &r.AccessCount,
			&r.CreatedAt, &lastAccessAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		populateRecordNullables(&r, summary, category, symbolsJSON, lastAccessAt)
		result = append(result, &r)
	}
	return result, rows.Err()
}

// populateRecordNullables fills in optional fields from nullable SQL columns.
func populateRecordNullables(
	r *models.MemoryRecord,
	summary, category, symbolsJSON sql.NullString,
	lastAccessAt sql.NullInt64,
) {
	if summary.Valid {
		r.Summary = summary.String
	}
	if category.Valid {
		r.Category = category.String
	}
	if symbolsJSON.Valid {
		json.Unmarshal([]byte(symbolsJSON.String), &r.Symbols)
	}
	if lastAccessAt.Valid {
		r.LastAccessAt = &lastAccessAt.Int64
	}
}

// nullIfEmpty converts "" to NULL for optional TEXT columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
