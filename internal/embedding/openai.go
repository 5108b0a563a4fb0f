package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient generates text embeddings via the OpenAI embeddings API.
type OpenAIClient struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIClient builds an authenticated embeddings client. baseURL may be
// empty to use the public endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, dimension int) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

// Embed generates an embedding vector for the given text. The pipeline has
// no caller context to thread through, so the timeout context is created
// here and bounds the whole call including retries.
func (c *OpenAIClient) Embed(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.model),
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned an empty embedding")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (c *OpenAIClient) Dimensions() int {
	return c.dimension
}

// HealthCheck verifies the API key by fetching the embedding model's metadata.
func (c *OpenAIClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	if _, err := c.client.Models.Get(ctx, c.model); err != nil {
		return fmt.Errorf("openai health check: %w", err)
	}
	return nil
}
