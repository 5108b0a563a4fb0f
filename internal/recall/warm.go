package recall

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultWarmQueries seed a workspace's cache when no config file
// overrides them.
var defaultWarmQueries = []string{
	"trading rules",
	"risk warnings",
	"position sizing",
	"open questions",
	"recent insights",
}

// WarmQueries configures which queries WarmCache runs: a default set plus
// per-workspace overrides.
type WarmQueries struct {
	Default    []string            `yaml:"default"`
	Workspaces map[string][]string `yaml:"workspaces"`
}

// LoadWarmQueries reads a warm-query YAML file. An empty or missing path
// yields the built-in defaults.
func LoadWarmQueries(path string) (*WarmQueries, error) {
	if path == "" {
		return &WarmQueries{Default: defaultWarmQueries}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &WarmQueries{Default: defaultWarmQueries}, nil
		}
		return nil, fmt.Errorf("read warm queries: %w", err)
	}

	var w WarmQueries
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse warm queries: %w", err)
	}
	if len(w.Default) == 0 {
		w.Default = defaultWarmQueries
	}
	return &w, nil
}

// For returns the warm queries for one workspace: its overrides first,
// then the defaults, deduplicated.
func (w *WarmQueries) For(workspaceID string) []string {
	if w == nil {
		return defaultWarmQueries
	}
	queries := append([]string(nil), w.Workspaces[workspaceID]...)
	for _, q := range w.Default {
		dup := false
		for _, existing := range queries {
			if existing == q {
				dup = true
				break
			}
		}
		if !dup {
			queries = append(queries, q)
		}
	}
	return queries
}
