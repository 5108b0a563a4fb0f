package vectorstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantClient interfaces with the Qdrant REST API for vector operations.
type QdrantClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	dimension  int
}

// NewQdrantClient builds a client for the given endpoint. apiKey may be
// empty for unauthenticated local deployments.
func NewQdrantClient(baseURL, apiKey string, dimension int) *QdrantClient {
	return &QdrantClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dimension: dimension,
	}
}

// Point represents a vector point in Qdrant.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResult is a single scored result from Qdrant.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchFilter narrows a search by payload values. Zero values mean no
// filtering on that field.
type SearchFilter struct {
	MinImportance float64
	Categories    []string
	Symbols       []string
}

// HealthCheck verifies Qdrant connectivity.
func (c *QdrantClient) HealthCheck() error {
	resp, err := c.get("/healthz")
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", resp.StatusCode)
	}
	return nil
}

// EnsureCollection creates a collection if it doesn't exist.
func (c *QdrantClient) EnsureCollection(name string) error {
	resp, err := c.get("/collections/" + name)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	}
	return c.put("/collections/"+name, body)
}

// Upsert inserts or updates vector points in a collection.
func (c *QdrantClient) Upsert(collection string, points []Point) error {
	body := map[string]any{
		"points": points,
	}
	return c.put("/collections/"+collection+"/points", body)
}

// Search finds the nearest vectors in a collection, filtered server-side by
// payload. Results come back ordered by similarity.
func (c *QdrantClient) Search(collection string, vector []float32, limit int, filter SearchFilter) ([]SearchResult, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if clauses := filterClauses(filter); len(clauses) > 0 {
		body["filter"] = map[string]any{"must": clauses}
	}

	respBody, err := c.post("/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = SearchResult{
			ID:      r.ID,
			Score:   r.Score,
			Payload: r.Payload,
		}
	}
	return results, nil
}

func filterClauses(filter SearchFilter) []map[string]any {
	var clauses []map[string]any
	if filter.MinImportance > 0 {
		clauses = append(clauses, map[string]any{
			"key":   "importance",
			"range": map[string]any{"gte": filter.MinImportance},
		})
	}
	if len(filter.Categories) > 0 {
		clauses = append(clauses, map[string]any{
			"key":   "category",
			"match": map[string]any{"any": filter.Categories},
		})
	}
	if len(filter.Symbols) > 0 {
		clauses = append(clauses, map[string]any{
			"key":   "symbols",
			"match": map[string]any{"any": filter.Symbols},
		})
	}
	return clauses
}

// DeletePoints removes points by their IDs from a collection.
func (c *QdrantClient) DeletePoints(collection string, ids []string) error {
	body := map[string]any{
		"points": ids,
	}
	_, err := c.post("/collections/"+collection+"/points/delete", body)
	return err
}

// CollectionExists checks if a collection exists.
func (c *QdrantClient) CollectionExists(name string) (bool, error) {
	resp, err := c.get("/collections/" + name)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (c *QdrantClient) get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	return c.httpClient.Do(req)
}

func (c *QdrantClient) put(path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant PUT %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant PUT %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *QdrantClient) post(path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant POST %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *QdrantClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}
