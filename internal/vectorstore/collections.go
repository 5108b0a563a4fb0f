package vectorstore

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// collectionPrefix namespaces this service's collections on a shared
// Qdrant deployment.
const collectionPrefix = "recall_notes_"

// CollectionName returns the Qdrant collection name for a workspace ID.
func CollectionName(workspaceID string) string {
	return collectionPrefix + workspaceID
}

// CollectionManager hands out ready-to-use collection names. Each
// workspace's collection is created at most once per process; concurrent
// ensures for the same workspace collapse into a single Qdrant call
// without blocking other workspaces.
type CollectionManager struct {
	client *QdrantClient

	group singleflight.Group

	mu      sync.Mutex
	ensured map[string]bool
}

func NewCollectionManager(client *QdrantClient) *CollectionManager {
	return &CollectionManager{
		client:  client,
		ensured: make(map[string]bool),
	}
}

// EnsureForWorkspace creates the workspace's collection unless this
// process already has, and returns its name. A failed ensure is not
// remembered, so the next call retries.
func (m *CollectionManager) EnsureForWorkspace(workspaceID string) (string, error) {
	name := CollectionName(workspaceID)

	m.mu.Lock()
	done := m.ensured[name]
	m.mu.Unlock()
	if done {
		return name, nil
	}

	_, err, _ := m.group.Do(name, func() (any, error) {
		if err := m.client.EnsureCollection(name); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.ensured[name] = true
		m.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return name, nil
}
