package ingest

import (
	"regexp"
	"strings"
)

// privateTagRegex matches <private>...</private> blocks (non-greedy, dotall).
var privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

// stripPrivate removes all <private>...</private> blocks from note content
// before it is indexed. Traders mark sections they never want surfacing in
// prompts; the mirror must not hold them.
func stripPrivate(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// entirelyPrivate reports whether nothing indexable remains after stripping.
func entirelyPrivate(content string) bool {
	return stripPrivate(content) == ""
}
