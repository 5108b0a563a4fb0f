package store

import (
	"fmt"
	"strings"
)

// LexicalHit is a single FTS5 match with its normalized score.
type LexicalHit struct {
	ID    string
	Score float64
}

// LexicalStore handles full-text search via SQLite FTS5.
type LexicalStore struct {
	db *DB
}

func NewLexicalStore(db *DB) *LexicalStore {
	return &LexicalStore{db: db}
}

// Search performs BM25 full-text search scoped to a workspace, optionally
// filtered by category. Scores are normalized to [0, 1] by the best rank of
// the result set, so they are monotonic within one query but not calibrated
// across queries. Free text is safe: every word is quoted before matching,
// so FTS5 operator syntax in the query cannot break it.
func (s *LexicalStore) Search(query, workspaceID string, limit int, categories []string) ([]LexicalHit, error) {
	if strings.TrimSpace(query) == "" || workspaceID == "" || limit <= 0 {
		return nil, nil
	}

	words := strings.Fields(query)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}

	// All words first; if nothing matches, retry with any word.
	hits, err := s.match(strings.Join(quoted, " "), workspaceID, limit, categories)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 && len(quoted) > 1 {
		hits, err = s.match(strings.Join(quoted, " OR "), workspaceID, limit, categories)
		if err != nil {
			return nil, err
		}
	}

	// bm25() returns negative values where more negative = better match; the
	// query negates them, so normalize by the max positive score.
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore > 0 {
		for i := range hits {
			hits[i].Score /= maxScore
		}
	}
	return hits, nil
}

func (s *LexicalStore) match(ftsQuery, workspaceID string, limit int, categories []string) ([]LexicalHit, error) {
	args := []any{ftsQuery, workspaceID}

	filter := ""
	if len(categories) > 0 {
		placeholders := make([]string, len(categories))
		for i, c := range categories {
			placeholders[i] = "?"
			args = append(args, c)
		}
		filter = fmt.Sprintf("AND r.category IN (%s)", strings.Join(placeholders, ","))
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT r.id, -rank AS score
		FROM records_fts
		JOIN records r ON r.rowid = records_fts.rowid
		WHERE records_fts MATCH ?
		  AND r.workspace_id = ?
		  %s
		ORDER BY rank
		LIMIT ?
	`, filter)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
