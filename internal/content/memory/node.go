package memory

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/stacklok/content-replicator/internal/content"
)

// Node is a node held by a memory Repository
type Node struct {
	repo       *Repository
	identifier string
	path       string
	nodeType   *content.NodeType
	site       *content.Site
	dimensions map[string][]string
	properties map[string]any
	index      int
	hidden     bool
	removed    bool
}

var _ content.Node = (*Node)(nil)

// Identifier implements content.Node
func (n *Node) Identifier() string { return n.identifier }

// Name implements content.Node
func (n *Node) Name() string {
	if n.path == "/" {
		return ""
	}
	return path.Base(n.path)
}

// Path implements content.Node
func (n *Node) Path() string { return n.path }

// ParentPath implements content.Node
func (n *Node) ParentPath() string {
	if n.path == "/" {
		return ""
	}
	return path.Dir(n.path)
}

// Depth implements content.Node
func (n *Node) Depth() int {
	if n.path == "/" {
		return 0
	}
	return strings.Count(n.path, "/")
}

// Parent implements content.Node
func (n *Node) Parent() content.Node {
	if n.path == "/" {
		return nil
	}
	parent := n.repo.lookupPath(n.ParentPath())
	if parent == nil {
		return nil
	}
	return parent
}

// NodeType implements content.Node
func (n *Node) NodeType() *content.NodeType { return n.nodeType }

// Dimensions implements content.Node
func (n *Node) Dimensions() map[string][]string {
	if n.dimensions == nil {
		return map[string][]string{}
	}
	return n.dimensions
}

// Property implements content.Node.
// Reference properties stored as identifiers are resolved to nodes.
func (n *Node) Property(name string) any {
	switch name {
	case content.PropertyName:
		return n.Name()
	case content.PropertyNodeType:
		return n.nodeType.Name()
	case content.PropertyHidden:
		return n.hidden
	case content.PropertyIdentifier:
		return n.identifier
	case content.PropertyParentPath:
		return n.ParentPath()
	}

	n.repo.mu.RLock()
	value, ok := n.properties[name]
	n.repo.mu.RUnlock()
	if !ok {
		return nil
	}

	definition, _ := n.nodeType.Property(name)
	switch definition.Type {
	case content.PropertyTypeReference:
		if identifier, ok := value.(string); ok {
			if target := n.repo.lookupIdentifier(identifier); target != nil {
				return target
			}
			return nil
		}
	case content.PropertyTypeReferences:
		if identifiers, ok := value.([]string); ok {
			nodes := make([]content.Node, 0, len(identifiers))
			for _, identifier := range identifiers {
				if target := n.repo.lookupIdentifier(identifier); target != nil {
					nodes = append(nodes, target)
				}
			}
			return nodes
		}
	case content.PropertyTypeAsset, content.PropertyTypeImage:
		if identifier, ok := value.(string); ok {
			asset, err := n.repo.Asset(identifier)
			if err != nil {
				return nil
			}
			return asset
		}
	}
	return value
}

// PropertyNames implements content.Node
func (n *Node) PropertyNames() []string {
	n.repo.mu.RLock()
	defer n.repo.mu.RUnlock()
	names := make([]string, 0, len(n.properties))
	for name := range n.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index implements content.Node
func (n *Node) Index() int { return n.index }

// IsRemoved implements content.Node
func (n *Node) IsRemoved() bool {
	n.repo.mu.RLock()
	defer n.repo.mu.RUnlock()
	return n.removed
}

// Site implements content.Node
func (n *Node) Site() *content.Site { return n.site }

// String implements content.Node
func (n *Node) String() string {
	return fmt.Sprintf("%s (%s)", n.path, n.identifier)
}
