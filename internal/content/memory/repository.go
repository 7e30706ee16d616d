// Package memory provides an in-memory content repository that can be
// populated programmatically or from a YAML or JSON export file.
package memory

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stacklok/content-replicator/internal/content"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when adding an entity with a taken key
	ErrAlreadyExists = errors.New("already exists")
)

// Repository is a thread-safe in-memory content repository
type Repository struct {
	mu         sync.RWMutex
	nodeTypes  map[string]*content.NodeType
	sites      map[string]*content.Site
	workspaces map[string]*content.Workspace
	assets     map[string]*content.Asset
	nodes      map[string]*Node
	byPath     map[string]*Node
	root       *Node
}

// NewRepository creates an empty repository containing only the root node
func NewRepository() *Repository {
	r := &Repository{
		nodeTypes:  map[string]*content.NodeType{},
		sites:      map[string]*content.Site{},
		workspaces: map[string]*content.Workspace{},
		assets:     map[string]*content.Asset{},
		nodes:      map[string]*Node{},
		byPath:     map[string]*Node{},
	}
	unstructured := content.NewNodeType(content.UnstructuredNodeType, nil)
	r.nodeTypes[unstructured.Name()] = unstructured
	r.root = &Node{repo: r, path: "/", nodeType: unstructured, properties: map[string]any{}}
	r.byPath["/"] = r.root
	return r
}

// AddNodeType registers a node type
func (r *Repository) AddNodeType(nodeType *content.NodeType) error {
	if err := nodeType.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodeTypes[nodeType.Name()] = nodeType
	return nil
}

// NodeType returns a registered node type
func (r *Repository) NodeType(name string) (*content.NodeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodeType, ok := r.nodeTypes[name]
	if !ok {
		return nil, fmt.Errorf("node type %q: %w", name, ErrNotFound)
	}
	return nodeType, nil
}

// AddSite registers a site
func (r *Repository) AddSite(site *content.Site) error {
	if site.NodeName == "" {
		return errors.New("site node name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sites[site.NodeName]; exists {
		return fmt.Errorf("site %q: %w", site.NodeName, ErrAlreadyExists)
	}
	r.sites[site.NodeName] = site
	return nil
}

// Site returns the site with the given node name
func (r *Repository) Site(nodeName string) (*content.Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.sites[nodeName]
	if !ok {
		return nil, fmt.Errorf("site %q: %w", nodeName, ErrNotFound)
	}
	return site, nil
}

// AddWorkspace registers a workspace layered on the named base workspace.
// An empty base name registers a root workspace. The base must already exist.
func (r *Repository) AddWorkspace(name, baseName string) (*content.Workspace, error) {
	if name == "" {
		return nil, errors.New("workspace name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workspaces[name]; exists {
		return nil, fmt.Errorf("workspace %q: %w", name, ErrAlreadyExists)
	}

	workspace := &content.Workspace{Name: name}
	if baseName != "" {
		base, ok := r.workspaces[baseName]
		if !ok {
			return nil, fmt.Errorf("base workspace %q of %q: %w", baseName, name, ErrNotFound)
		}
		bases := make([]*content.Workspace, 0, len(base.BaseWorkspaces)+1)
		bases = append(bases, base.BaseWorkspaces...)
		workspace.BaseWorkspaces = append(bases, base)
	}
	r.workspaces[name] = workspace
	return workspace, nil
}

// Workspace returns the workspace with the given name
func (r *Repository) Workspace(name string) (*content.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workspace, ok := r.workspaces[name]
	if !ok {
		return nil, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	return workspace, nil
}

// AddAsset registers an asset. Variants must reference a registered original.
func (r *Repository) AddAsset(asset *content.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if asset.Identifier == "" {
		asset.Identifier = uuid.NewString()
	}
	if _, exists := r.assets[asset.Identifier]; exists {
		return fmt.Errorf("asset %q: %w", asset.Identifier, ErrAlreadyExists)
	}
	if asset.OriginalAsset != nil {
		if _, ok := r.assets[asset.OriginalAsset.Identifier]; !ok {
			return fmt.Errorf("original asset %q of %q: %w", asset.OriginalAsset.Identifier, asset.Identifier, ErrNotFound)
		}
	}
	r.assets[asset.Identifier] = asset
	return nil
}

// Asset returns the asset with the given identifier
func (r *Repository) Asset(identifier string) (*content.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[identifier]
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", identifier, ErrNotFound)
	}
	return asset, nil
}

// NodeSpec describes a node to add to the repository
type NodeSpec struct {
	Identifier string
	Path       string
	NodeType   string
	Site       string
	Dimensions map[string][]string
	Properties map[string]any
	Index      int
	Hidden     bool
	Removed    bool
}

// AddNode adds a node. Its parent path must already exist.
// An empty identifier is replaced with a generated one.
func (r *Repository) AddNode(spec NodeSpec) (*Node, error) {
	nodePath := path.Clean("/" + strings.TrimPrefix(spec.Path, "/"))
	if nodePath == "/" {
		return nil, errors.New("the root node cannot be added")
	}

	nodeTypeName := spec.NodeType
	if nodeTypeName == "" {
		nodeTypeName = content.UnstructuredNodeType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nodeType, ok := r.nodeTypes[nodeTypeName]
	if !ok {
		return nil, fmt.Errorf("node type %q of node %q: %w", nodeTypeName, nodePath, ErrNotFound)
	}
	if _, exists := r.byPath[nodePath]; exists {
		return nil, fmt.Errorf("node %q: %w", nodePath, ErrAlreadyExists)
	}
	parentPath := path.Dir(nodePath)
	if _, ok := r.byPath[parentPath]; !ok {
		return nil, fmt.Errorf("parent %q of node %q: %w", parentPath, nodePath, ErrNotFound)
	}

	var site *content.Site
	if spec.Site != "" {
		if site, ok = r.sites[spec.Site]; !ok {
			return nil, fmt.Errorf("site %q of node %q: %w", spec.Site, nodePath, ErrNotFound)
		}
	}

	identifier := spec.Identifier
	if identifier == "" {
		identifier = uuid.NewString()
	}
	if _, exists := r.nodes[identifier]; exists {
		return nil, fmt.Errorf("node identifier %q: %w", identifier, ErrAlreadyExists)
	}

	properties := make(map[string]any, len(spec.Properties))
	for name, value := range spec.Properties {
		properties[name] = value
	}

	node := &Node{
		repo:       r,
		identifier: identifier,
		path:       nodePath,
		nodeType:   nodeType,
		site:       site,
		dimensions: spec.Dimensions,
		properties: properties,
		index:      spec.Index,
		hidden:     spec.Hidden,
		removed:    spec.Removed,
	}
	r.nodes[identifier] = node
	r.byPath[nodePath] = node
	return node, nil
}

// Node returns the node with the given identifier
func (r *Repository) Node(identifier string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[identifier]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", identifier, ErrNotFound)
	}
	return node, nil
}

// NodeByPath returns the node at the given path
func (r *Repository) NodeByPath(nodePath string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.byPath[path.Clean(nodePath)]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", nodePath, ErrNotFound)
	}
	return node, nil
}

// Nodes returns all nodes except the root, ordered by path
func (r *Repository) Nodes() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := make([]*Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].path < nodes[j].path
	})
	return nodes
}

// MarkRemoved flags a node as removed
func (r *Repository) MarkRemoved(identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[identifier]
	if !ok {
		return fmt.Errorf("node %q: %w", identifier, ErrNotFound)
	}
	node.removed = true
	return nil
}

// SetProperty changes a property value of a node
func (r *Repository) SetProperty(identifier, name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[identifier]
	if !ok {
		return fmt.Errorf("node %q: %w", identifier, ErrNotFound)
	}
	if _, declared := node.nodeType.Property(name); !declared && node.nodeType.Name() != content.UnstructuredNodeType {
		return fmt.Errorf("node %q has no property %q", identifier, name)
	}
	node.properties[name] = value
	return nil
}

func (r *Repository) lookupPath(nodePath string) *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPath[nodePath]
}

func (r *Repository) lookupIdentifier(identifier string) *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[identifier]
}
