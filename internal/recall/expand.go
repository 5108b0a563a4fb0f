package recall

import "strings"

// maxVariants caps how many query variants one recall will search.
const maxVariants = 3

// stopwords dropped for the keyword variant.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"what": true, "which": true, "when": true, "how": true, "why": true,
	"i": true, "my": true, "me": true, "we": true, "our": true,
	"it": true, "its": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "with": true, "about": true, "any": true,
	"all": true, "show": true, "find": true, "list": true, "give": true,
}

// expandQuery produces deterministic variants of a query, the original
// always first. A symbols variant isolates ticker-looking tokens and a
// keyword variant drops stopwords; variants that duplicate an earlier one
// are skipped.
func expandQuery(query string) []string {
	variants := []string{query}

	if symbols := extractSymbols(query); len(symbols) > 0 {
		variants = appendVariant(variants, strings.Join(symbols, " "))
	}
	if keywords := stripStopwords(query); keywords != "" {
		variants = appendVariant(variants, keywords)
	}

	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	return variants
}

func appendVariant(variants []string, v string) []string {
	for _, existing := range variants {
		if strings.EqualFold(existing, v) {
			return variants
		}
	}
	return append(variants, v)
}

// extractSymbols pulls ticker-looking tokens: $-prefixed words or 2-5
// letter all-uppercase words.
func extractSymbols(query string) []string {
	var symbols []string
	seen := map[string]bool{}
	for _, tok := range strings.Fields(query) {
		tok = strings.Trim(tok, ".,;:!?()[]")
		var sym string
		switch {
		case strings.HasPrefix(tok, "$") && len(tok) > 1:
			sym = strings.ToUpper(tok[1:])
		case len(tok) >= 2 && len(tok) <= 5 && isUpperAlpha(tok):
			sym = tok
		}
		if sym != "" && !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// stripStopwords returns the query minus stopwords, or "" when nothing was
// dropped (the variant would just duplicate the original).
func stripStopwords(query string) string {
	fields := strings.Fields(query)
	var kept []string
	for _, tok := range fields {
		if !stopwords[strings.ToLower(strings.Trim(tok, ".,;:!?()[]"))] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 || len(kept) == len(fields) {
		return ""
	}
	return strings.Join(kept, " ")
}
