package recall

import (
	"strings"

	"github.com/quantdesk/recall/internal/models"
)

// Importance tier boundaries for prompt grouping.
const (
	tierCritical  = 0.8
	tierImportant = 0.5
)

// maxPromptContentLen bounds how much raw content one entry contributes
// when it has no summary.
const maxPromptContentLen = 200

// FormatForPrompt renders entries as a context block for an LLM prompt,
// grouped by importance tier. Returns "" when there is nothing to render.
func FormatForPrompt(entries []models.RecallEntry) string {
	if len(entries) == 0 {
		return ""
	}

	var critical, important, relevant []models.RecallEntry
	for _, e := range entries {
		switch {
		case e.Record.Importance >= tierCritical:
			critical = append(critical, e)
		case e.Record.Importance >= tierImportant:
			important = append(important, e)
		default:
			relevant = append(relevant, e)
		}
	}

	var b strings.Builder
	b.WriteString("# Recalled notes\n")
	writeTier(&b, "Critical", critical)
	writeTier(&b, "Important", important)
	writeTier(&b, "Relevant", relevant)
	return b.String()
}

func writeTier(b *strings.Builder, title string, entries []models.RecallEntry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("\n## " + title + "\n")
	for _, e := range entries {
		r := e.Record
		text := r.Summary
		if text == "" {
			text = truncate(r.Content, maxPromptContentLen)
		}
		b.WriteString("- [" + r.RecordType + "] " + text)
		if len(r.Symbols) > 0 {
			b.WriteString(" (" + strings.Join(r.Symbols, ", ") + ")")
		}
		b.WriteString("\n")
	}
}

// truncate shortens text at a word boundary, appending an ellipsis.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
