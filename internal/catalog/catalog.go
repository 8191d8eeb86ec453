package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
)

// ExecutorConfig points a collection's registry calls at an executor
// endpoint.
type ExecutorConfig struct {
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Collection groups tools under an owning user and an executor endpoint.
type Collection struct {
	ID          string
	Name        string
	OwnerUserID string
	Executor    ExecutorConfig
}

// Tool describes a registry tool: a named export of a published package.
type Tool struct {
	PackageName string
	ToolName    string
	Description string
	InputSchema map[string]any
}

// BridgeTool describes a tool declared by a user's bridge poller.
type BridgeTool struct {
	ServerID    string
	ToolName    string
	Description string
	InputSchema map[string]any
}

// CollectionTools groups a collection's tools by execution path.
type CollectionTools struct {
	Registry []Tool
	Bridge   []BridgeTool
}

// Catalog is the lookup boundary consumed by the gateway. Implementations
// must be safe for concurrent use.
type Catalog interface {
	// Collection returns the addressed collection record.
	Collection(ctx context.Context, collectionID string) (*Collection, error)

	// CollectionTools returns the collection's registry and bridge tools in
	// declaration order.
	CollectionTools(ctx context.Context, collectionID string) (*CollectionTools, error)

	// Lookup resolves a registry tool by trying candidate package names in
	// order and returning the first match.
	Lookup(ctx context.Context, candidatePackages []string, toolName string) (*Tool, error)
}

// Compile-time verification that Memory implements Catalog.
var _ Catalog = (*Memory)(nil)

// Memory is an in-memory catalog.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	packages    map[string]map[string]*Tool
}

type memCollection struct {
	meta     Collection
	registry []Tool
	bridge   []BridgeTool
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection, 4),
		packages:    make(map[string]map[string]*Tool, 16),
	}
}

// AddCollection registers a collection, generating an ID when the record
// carries none, and returns the effective ID.
func (m *Memory) AddCollection(c Collection) string {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[c.ID] = &memCollection{meta: c}

	return c.ID
}

// AddTool attaches a registry tool to a collection and indexes it for
// package lookup.
func (m *Memory) AddTool(collectionID string, t Tool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return errors.ErrCollectionNotFound
	}

	col.registry = append(col.registry, t)

	tools, ok := m.packages[t.PackageName]
	if !ok {
		tools = make(map[string]*Tool, 4)
		m.packages[t.PackageName] = tools
	}

	stored := t
	tools[t.ToolName] = &stored

	return nil
}

// AddBridgeTool attaches a bridge tool declaration to a collection.
func (m *Memory) AddBridgeTool(collectionID string, t BridgeTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return errors.ErrCollectionNotFound
	}

	col.bridge = append(col.bridge, t)

	return nil
}

// FillExecutorDefaults assigns cfg to every collection that has no executor
// URL of its own. Collections carrying a URL keep their full config, token
// included. Returns how many collections were filled.
func (m *Memory) FillExecutorDefaults(cfg ExecutorConfig) int {
	if cfg.URL == "" {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filled := 0

	for _, col := range m.collections {
		if col.meta.Executor.URL == "" {
			col.meta.Executor = cfg
			filled++
		}
	}

	return filled
}

// CollectionCount reports how many collections the catalog holds.
func (m *Memory) CollectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.collections)
}

// Collection implements Catalog.
func (m *Memory) Collection(_ context.Context, collectionID string) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return nil, errors.ErrCollectionNotFound
	}

	meta := col.meta

	return &meta, nil
}

// CollectionTools implements Catalog.
func (m *Memory) CollectionTools(_ context.Context, collectionID string) (*CollectionTools, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collectionID]
	if !ok {
		return nil, errors.ErrCollectionNotFound
	}

	out := &CollectionTools{
		Registry: make([]Tool, len(col.registry)),
		Bridge:   make([]BridgeTool, len(col.bridge)),
	}
	copy(out.Registry, col.registry)
	copy(out.Bridge, col.bridge)

	return out, nil
}

// Lookup implements Catalog.
func (m *Memory) Lookup(_ context.Context, candidatePackages []string, toolName string) (*Tool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, pkg := range candidatePackages {
		tools, ok := m.packages[pkg]
		if !ok {
			continue
		}

		if t, ok := tools[toolName]; ok {
			return t, nil
		}
	}

	return nil, errors.ErrToolNotFound
}
