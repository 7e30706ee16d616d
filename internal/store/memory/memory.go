// Package memory provides an in-memory Store
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/content-replicator/internal/store"
)

type nodeKey struct {
	workspace  string
	dimensions string
	identifier string
}

type pathKey struct {
	workspace  string
	dimensions string
	path       string
}

// Store keeps replicated content in maps guarded by a RWMutex
type Store struct {
	mu         sync.RWMutex
	sites      map[string]*store.Site
	workspaces map[string]*store.Workspace
	nodes      map[nodeKey]*store.Node
	paths      map[pathKey]nodeKey
	assets     map[string]*store.Asset
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		sites:      make(map[string]*store.Site),
		workspaces: make(map[string]*store.Workspace),
		nodes:      make(map[nodeKey]*store.Node),
		paths:      make(map[pathKey]nodeKey),
		assets:     make(map[string]*store.Asset),
		now:        time.Now,
	}
}

// Ping implements store.Store
func (*Store) Ping(context.Context) error {
	return nil
}

// Close implements store.Store
func (*Store) Close() error {
	return nil
}

// ListSites returns all sites ordered by node name
func (s *Store) ListSites(context.Context) ([]*store.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sites := make([]*store.Site, 0, len(s.sites))
	for _, site := range s.sites {
		copied := *site
		sites = append(sites, &copied)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].NodeName < sites[j].NodeName })
	return sites, nil
}

// GetSite implements store.Store
func (s *Store) GetSite(_ context.Context, nodeName string) (*store.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[nodeName]
	if !ok {
		return nil, fmt.Errorf("site %s: %w", nodeName, store.ErrNotFound)
	}
	copied := *site
	return &copied, nil
}

// CreateSite implements store.Store
func (s *Store) CreateSite(_ context.Context, site *store.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sites[site.NodeName]; exists {
		return fmt.Errorf("site %s: %w", site.NodeName, store.ErrAlreadyExists)
	}
	copied := *site
	copied.CreatedAt = s.now()
	s.sites[site.NodeName] = &copied
	*site = copied
	return nil
}

// GetWorkspace implements store.Store
func (s *Store) GetWorkspace(_ context.Context, name string) (*store.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workspace, ok := s.workspaces[name]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", name, store.ErrNotFound)
	}
	copied := *workspace
	return &copied, nil
}

// CreateWorkspace implements store.Store. The base workspace must exist.
func (s *Store) CreateWorkspace(_ context.Context, workspace *store.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workspaces[workspace.Name]; exists {
		return fmt.Errorf("workspace %s: %w", workspace.Name, store.ErrAlreadyExists)
	}
	if workspace.BaseWorkspaceName != "" {
		if _, ok := s.workspaces[workspace.BaseWorkspaceName]; !ok {
			return fmt.Errorf("base workspace %s: %w", workspace.BaseWorkspaceName, store.ErrNotFound)
		}
	}
	copied := *workspace
	copied.CreatedAt = s.now()
	s.workspaces[workspace.Name] = &copied
	*workspace = copied
	return nil
}

// GetNode implements store.Store
func (s *Store) GetNode(
	_ context.Context, identifier, workspace string, dimensions map[string][]string,
) (*store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[nodeKey{workspace: workspace, dimensions: store.DimensionsHash(dimensions), identifier: identifier}]
	if !ok {
		return nil, fmt.Errorf("node %s in workspace %s: %w", identifier, workspace, store.ErrNotFound)
	}
	return node.Clone(), nil
}

// GetNodeByPath implements store.Store
func (s *Store) GetNodeByPath(
	_ context.Context, nodePath, workspace string, dimensions map[string][]string,
) (*store.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.paths[pathKey{workspace: workspace, dimensions: store.DimensionsHash(dimensions), path: nodePath}]
	if !ok {
		return nil, fmt.Errorf("node at %s in workspace %s: %w", nodePath, workspace, store.ErrNotFound)
	}
	return s.nodes[key].Clone(), nil
}

// CreateNode implements store.Store
func (s *Store) CreateNode(_ context.Context, node *store.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[node.Workspace]; !ok {
		return fmt.Errorf("workspace %s: %w", node.Workspace, store.ErrNotFound)
	}
	hash := store.DimensionsHash(node.Dimensions)
	key := nodeKey{workspace: node.Workspace, dimensions: hash, identifier: node.Identifier}
	if _, exists := s.nodes[key]; exists {
		return fmt.Errorf("node %s: %w", node.Identifier, store.ErrAlreadyExists)
	}
	byPath := pathKey{workspace: node.Workspace, dimensions: hash, path: node.Path}
	if _, exists := s.paths[byPath]; exists {
		return fmt.Errorf("node at %s: %w", node.Path, store.ErrAlreadyExists)
	}

	stored := node.Clone()
	stored.UpdatedAt = s.now()
	s.nodes[key] = stored
	s.paths[byPath] = key
	node.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdateNode implements store.Store. A changed path moves the node.
func (s *Store) UpdateNode(_ context.Context, node *store.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := store.DimensionsHash(node.Dimensions)
	key := nodeKey{workspace: node.Workspace, dimensions: hash, identifier: node.Identifier}
	existing, ok := s.nodes[key]
	if !ok {
		return fmt.Errorf("node %s: %w", node.Identifier, store.ErrNotFound)
	}
	if existing.Path != node.Path {
		byPath := pathKey{workspace: node.Workspace, dimensions: hash, path: node.Path}
		if _, taken := s.paths[byPath]; taken {
			return fmt.Errorf("node at %s: %w", node.Path, store.ErrAlreadyExists)
		}
		delete(s.paths, pathKey{workspace: node.Workspace, dimensions: hash, path: existing.Path})
		s.paths[byPath] = key
	}

	stored := node.Clone()
	stored.UpdatedAt = s.now()
	s.nodes[key] = stored
	node.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteNode implements store.Store
func (s *Store) DeleteNode(
	_ context.Context, identifier, workspace string, dimensions map[string][]string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := store.DimensionsHash(dimensions)
	node, ok := s.nodes[nodeKey{workspace: workspace, dimensions: hash, identifier: identifier}]
	if !ok {
		return fmt.Errorf("node %s in workspace %s: %w", identifier, workspace, store.ErrNotFound)
	}

	root := node.Path
	for key, candidate := range s.nodes {
		if key.workspace != workspace || key.dimensions != hash {
			continue
		}
		if candidate.Path == root || store.IsDescendantPath(candidate.Path, root) {
			delete(s.nodes, key)
			delete(s.paths, pathKey{workspace: workspace, dimensions: hash, path: candidate.Path})
		}
	}
	return nil
}

// GetAsset implements store.Store
func (s *Store) GetAsset(_ context.Context, identifier string) (*store.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[identifier]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", identifier, store.ErrNotFound)
	}
	copied := *asset
	return &copied, nil
}

// CreateAsset implements store.Store. The original of a variant must exist.
func (s *Store) CreateAsset(_ context.Context, asset *store.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[asset.Identifier]; exists {
		return fmt.Errorf("asset %s: %w", asset.Identifier, store.ErrAlreadyExists)
	}
	if asset.OriginalAsset != "" {
		if _, ok := s.assets[asset.OriginalAsset]; !ok {
			return fmt.Errorf("original asset %s: %w", asset.OriginalAsset, store.ErrNotFound)
		}
	}
	copied := *asset
	copied.CreatedAt = s.now()
	s.assets[asset.Identifier] = &copied
	*asset = copied
	return nil
}
