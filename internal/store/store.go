// Package store defines the persistence used by the target API to hold
// replicated sites, workspaces, nodes and assets.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record that exists
	ErrAlreadyExists = errors.New("already exists")
)

// LiveWorkspace is the workspace every other workspace is eventually based on
const LiveWorkspace = "live"

// Site is a replicated site
type Site struct {
	Name                string    `json:"name"`
	NodeName            string    `json:"nodeName"`
	ResourcesPackageKey string    `json:"resourcesPackageKey"`
	State               int       `json:"state"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Workspace is a replicated workspace
type Workspace struct {
	Name              string    `json:"name"`
	BaseWorkspaceName string    `json:"baseWorkspaceName,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Node is a replicated node variant, identified by identifier, workspace and dimensions
type Node struct {
	Identifier string              `json:"identifier"`
	Workspace  string              `json:"workspaceName"`
	Dimensions map[string][]string `json:"dimensions"`
	Path       string              `json:"path"`
	NodeType   string              `json:"nodeType"`
	Hidden     bool                `json:"hidden"`
	Index      int                 `json:"index"`
	Properties map[string]any      `json:"properties"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Name returns the last path segment
func (n *Node) Name() string {
	return path.Base(n.Path)
}

// ParentPath returns the path of the parent node
func (n *Node) ParentPath() string {
	return path.Dir(n.Path)
}

// Clone returns a deep enough copy to be modified independently
func (n *Node) Clone() *Node {
	clone := *n
	clone.Dimensions = make(map[string][]string, len(n.Dimensions))
	for name, values := range n.Dimensions {
		clone.Dimensions[name] = append([]string(nil), values...)
	}
	clone.Properties = make(map[string]any, len(n.Properties))
	for name, value := range n.Properties {
		clone.Properties[name] = value
	}
	return &clone
}

// Resource is the binary payload of an asset
type Resource struct {
	Filename       string `json:"filename"`
	MediaType      string `json:"mediaType"`
	CollectionName string `json:"collectionName,omitempty"`
	SHA1           string `json:"sha1"`
	Content        []byte `json:"content,omitempty"`
}

// Asset is a replicated asset. Variants reference their original.
type Asset struct {
	Identifier    string         `json:"identifier"`
	Type          string         `json:"type"`
	Title         string         `json:"title,omitempty"`
	Caption       string         `json:"caption,omitempty"`
	OriginalAsset string         `json:"originalAsset,omitempty"`
	Adjustments   map[string]any `json:"adjustments,omitempty"`
	Resource      *Resource      `json:"resource,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Store persists replicated content
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/stacklok/content-replicator/internal/store Store
type Store interface {
	// Ping checks the store is reachable
	Ping(ctx context.Context) error

	ListSites(ctx context.Context) ([]*Site, error)
	GetSite(ctx context.Context, nodeName string) (*Site, error)
	CreateSite(ctx context.Context, site *Site) error

	GetWorkspace(ctx context.Context, name string) (*Workspace, error)
	CreateWorkspace(ctx context.Context, workspace *Workspace) error

	// GetNode returns the node variant stored in exactly this workspace
	GetNode(ctx context.Context, identifier, workspace string, dimensions map[string][]string) (*Node, error)
	// GetNodeByPath returns the node variant at path stored in exactly this workspace
	GetNodeByPath(ctx context.Context, nodePath, workspace string, dimensions map[string][]string) (*Node, error)
	CreateNode(ctx context.Context, node *Node) error
	UpdateNode(ctx context.Context, node *Node) error
	// DeleteNode removes the node variant and everything below it
	DeleteNode(ctx context.Context, identifier, workspace string, dimensions map[string][]string) error

	GetAsset(ctx context.Context, identifier string) (*Asset, error)
	CreateAsset(ctx context.Context, asset *Asset) error

	Close() error
}

// DimensionsHash returns a stable key for a set of dimension values.
// Dimension names are ordered, value order is significant.
func DimensionsHash(dimensions map[string][]string) string {
	if dimensions == nil {
		dimensions = map[string][]string{}
	}
	// json.Marshal orders map keys
	encoded, err := json.Marshal(dimensions)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// IsDescendantPath reports whether nodePath lies below ancestorPath
func IsDescendantPath(nodePath, ancestorPath string) bool {
	if ancestorPath == "/" {
		return nodePath != "/"
	}
	return strings.HasPrefix(nodePath, ancestorPath+"/")
}

// WorkspaceChain returns the workspace followed by its base workspaces, nearest first
func WorkspaceChain(ctx context.Context, s Store, name string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	for name != "" {
		if seen[name] {
			return nil, errors.New("cyclic base workspaces")
		}
		seen[name] = true
		workspace, err := s.GetWorkspace(ctx, name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, workspace.Name)
		name = workspace.BaseWorkspaceName
	}
	return chain, nil
}

// FindNode looks the node up in the workspace and then in its base workspaces.
// It returns the workspace the node was found in.
func FindNode(
	ctx context.Context, s Store, identifier, workspace string, dimensions map[string][]string,
) (*Node, string, error) {
	chain, err := WorkspaceChain(ctx, s, workspace)
	if err != nil {
		return nil, "", err
	}
	for _, name := range chain {
		node, err := s.GetNode(ctx, identifier, name, dimensions)
		if err == nil {
			return node, name, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", ErrNotFound
}

// FindNodeByPath looks the path up in the workspace and then in its base workspaces
func FindNodeByPath(
	ctx context.Context, s Store, nodePath, workspace string, dimensions map[string][]string,
) (*Node, error) {
	chain, err := WorkspaceChain(ctx, s, workspace)
	if err != nil {
		return nil, err
	}
	for _, name := range chain {
		node, err := s.GetNodeByPath(ctx, nodePath, name, dimensions)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
