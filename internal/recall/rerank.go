package recall

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quantdesk/recall/internal/models"
)

// Reranker reorders merged candidates for a query and truncates to limit.
// Implementations must return at least min(limit, len(entries)) entries or
// an error; the engine falls back to plain truncation on failure.
type Reranker interface {
	Rerank(query string, entries []models.RecallEntry, limit int) ([]models.RecallEntry, error)
}

// rerankTimeout bounds one reranker call end to end.
const rerankTimeout = 15 * time.Second

// rerankDigestLen bounds each candidate line in the rerank prompt.
const rerankDigestLen = 160

// LLMReranker asks a small Claude model to order candidates by relevance
// to the query.
type LLMReranker struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewLLMReranker builds a reranker. baseURL may be empty for the public
// endpoint.
func NewLLMReranker(apiKey, baseURL, model string) *LLMReranker {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &LLMReranker{
		client: &client,
		model:  anthropic.Model(model),
	}
}

// Rerank sends a numbered digest of the candidates and parses the ordered
// index list the model returns. Indices the model skipped are filled back
// in original order, so the result is never shorter than plain truncation.
func (r *LLMReranker) Rerank(query string, entries []models.RecallEntry, limit int) ([]models.RecallEntry, error) {
	want := limit
	if len(entries) < want {
		want = len(entries)
	}
	if want == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), rerankTimeout)
	defer cancel()

	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       r.model,
		MaxTokens:   256,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildRerankPrompt(query, entries, want))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	order, err := parseRankOrder(text, len(entries))
	if err != nil {
		return nil, err
	}

	picked := make([]models.RecallEntry, 0, want)
	used := make(map[int]bool, len(order))
	for _, idx := range order {
		if len(picked) == want {
			break
		}
		if !used[idx] {
			used[idx] = true
			picked = append(picked, entries[idx])
		}
	}
	for i := 0; len(picked) < want && i < len(entries); i++ {
		if !used[i] {
			used[i] = true
			picked = append(picked, entries[i])
		}
	}
	return picked, nil
}

func buildRerankPrompt(query string, entries []models.RecallEntry, want int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order these trading notes by relevance to the query.\n\nQuery: %s\n\nNotes:\n", query)
	for i, e := range entries {
		rec := e.Record
		text := rec.Summary
		if text == "" {
			text = truncate(rec.Content, rerankDigestLen)
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, rec.RecordType, text)
	}
	fmt.Fprintf(&b, "\nReply with the %d most relevant note numbers in order, comma-separated, nothing else.", want)
	return b.String()
}

// parseRankOrder extracts 1-based indices from the model reply, converting
// to 0-based and dropping out-of-range values.
func parseRankOrder(text string, n int) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("rerank: empty reply")
	}

	var order []int
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	}) {
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(part), "."))
		if err != nil {
			continue
		}
		if idx >= 1 && idx <= n {
			order = append(order, idx-1)
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("rerank: no usable indices in reply %q", text)
	}
	return order, nil
}
