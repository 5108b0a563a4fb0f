package recall

import "github.com/quantdesk/recall/internal/models"

// candidate is one scored record id from a single search method.
type candidate struct {
	id    string
	score float64
}

// merged tracks the best raw score per method for one record id.
type merged struct {
	lexical  float64
	semantic float64
	hasLex   bool
	hasSem   bool
}

// mergeScores combines per-variant candidate lists from both methods,
// deduplicating by record id. Within one method the best raw score across
// variants wins.
func mergeScores(lexLists, semLists [][]candidate) map[string]*merged {
	out := make(map[string]*merged)
	for _, list := range lexLists {
		for _, c := range list {
			m := out[c.id]
			if m == nil {
				m = &merged{}
				out[c.id] = m
			}
			if !m.hasLex || c.score > m.lexical {
				m.lexical = c.score
				m.hasLex = true
			}
		}
	}
	for _, list := range semLists {
		for _, c := range list {
			m := out[c.id]
			if m == nil {
				m = &merged{}
				out[c.id] = m
			}
			if !m.hasSem || c.score > m.semantic {
				m.semantic = c.score
				m.hasSem = true
			}
		}
	}
	return out
}

// combinedScore sums the weighted contributions of both methods and reports
// which side dominates: records found only lexically are local, records
// found only semantically are remote, and records found by both take the
// side with the larger weighted contribution (remote on a tie).
func combinedScore(m *merged, lexWeight, semWeight float64) (float64, models.ResultSource) {
	var lex, sem float64
	if m.hasLex {
		lex = lexWeight * m.lexical
	}
	if m.hasSem {
		sem = semWeight * m.semantic
	}
	score := lex + sem

	switch {
	case m.hasLex && m.hasSem:
		if sem >= lex {
			return score, models.SourceRemote
		}
		return score, models.SourceLocal
	case m.hasSem:
		return score, models.SourceRemote
	default:
		return score, models.SourceLocal
	}
}
