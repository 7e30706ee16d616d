// Package content defines the content repository model read by the replicator:
// sites, workspaces, typed nodes and the assets they reference.
//
// The replicator never owns this data. The types here describe what the
// replication core needs to know about the hosting content repository, and the
// memory subpackage provides an implementation backed by an export file.
package content

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyType is the declared type of a node property
type PropertyType string

const (
	// PropertyTypeString is a plain string property
	PropertyTypeString PropertyType = "string"
	// PropertyTypeInteger is an integer property
	PropertyTypeInteger PropertyType = "integer"
	// PropertyTypeBoolean is a boolean property
	PropertyTypeBoolean PropertyType = "boolean"
	// PropertyTypeFloat is a floating point property
	PropertyTypeFloat PropertyType = "float"
	// PropertyTypeDateTime is a point in time, transferred in W3C format
	PropertyTypeDateTime PropertyType = "DateTime"
	// PropertyTypeArray is a list or map, transferred JSON encoded
	PropertyTypeArray PropertyType = "array"
	// PropertyTypeReference points to another node by identifier
	PropertyTypeReference PropertyType = "reference"
	// PropertyTypeReferences points to a list of nodes by identifier
	PropertyTypeReferences PropertyType = "references"
	// PropertyTypeAsset holds a managed asset
	PropertyTypeAsset PropertyType = "asset"
	// PropertyTypeImage holds an image or an image variant
	PropertyTypeImage PropertyType = "image"
)

// IsAsset reports whether properties of this type hold managed assets
func (t PropertyType) IsAsset() bool {
	return t == PropertyTypeAsset || t == PropertyTypeImage
}

// IsValid reports whether t is a known property type
func (t PropertyType) IsValid() bool {
	switch t {
	case PropertyTypeString, PropertyTypeInteger, PropertyTypeBoolean, PropertyTypeFloat,
		PropertyTypeDateTime, PropertyTypeArray, PropertyTypeReference, PropertyTypeReferences,
		PropertyTypeAsset, PropertyTypeImage:
		return true
	}
	return false
}

// Structural and identity property names every node type declares.
//
// A single leading underscore marks a structural field of the node that is set
// directly, a double underscore marks an identity marker kept verbatim.
const (
	PropertyName       = "_name"
	PropertyNodeType   = "_nodeType"
	PropertyHidden     = "_hidden"
	PropertyIndex      = "_index"
	PropertyIdentifier = "__identifier"
	PropertyParentPath = "__parentPath"
)

// UnstructuredNodeType is the node type used when none is given
const UnstructuredNodeType = "unstructured"

var builtinProperties = map[string]PropertyDefinition{
	PropertyName:       {Type: PropertyTypeString},
	PropertyNodeType:   {Type: PropertyTypeString},
	PropertyHidden:     {Type: PropertyTypeBoolean},
	PropertyIdentifier: {Type: PropertyTypeString},
	PropertyParentPath: {Type: PropertyTypeString},
}

// IsStructural reports whether name denotes a structural field (single underscore)
func IsStructural(name string) bool {
	return strings.HasPrefix(name, "_") && !IsIdentityMarker(name)
}

// IsIdentityMarker reports whether name denotes an identity or type marker (double underscore)
func IsIdentityMarker(name string) bool {
	return strings.HasPrefix(name, "__")
}

// PropertyDefinition declares a single property of a node type
type PropertyDefinition struct {
	Type PropertyType `yaml:"type" json:"type"`
}

// NodeType describes the properties nodes of a given type carry
type NodeType struct {
	name       string
	properties map[string]PropertyDefinition
	names      []string
}

// NewNodeType creates a node type with the given declared properties.
// The structural and identity properties are always declared in addition.
func NewNodeType(name string, properties map[string]PropertyDefinition) *NodeType {
	merged := make(map[string]PropertyDefinition, len(properties)+len(builtinProperties))
	for propertyName, definition := range builtinProperties {
		merged[propertyName] = definition
	}
	for propertyName, definition := range properties {
		merged[propertyName] = definition
	}

	names := make([]string, 0, len(merged))
	for propertyName := range merged {
		names = append(names, propertyName)
	}
	sort.Strings(names)

	return &NodeType{
		name:       name,
		properties: merged,
		names:      names,
	}
}

// Name returns the node type name
func (t *NodeType) Name() string {
	return t.name
}

// PropertyNames returns the declared property names in lexical order
func (t *NodeType) PropertyNames() []string {
	return t.names
}

// Property returns the declaration of the named property
func (t *NodeType) Property(name string) (PropertyDefinition, bool) {
	definition, ok := t.properties[name]
	return definition, ok
}

// Validate checks that all declared property types are known
func (t *NodeType) Validate() error {
	for _, name := range t.names {
		if !t.properties[name].Type.IsValid() {
			return fmt.Errorf("node type %q: property %q has unknown type %q", t.name, name, t.properties[name].Type)
		}
	}
	return nil
}

// Site is a top-level content root mapped to a resources package
type Site struct {
	Name                string `yaml:"name" json:"name"`
	NodeName            string `yaml:"nodeName" json:"nodeName"`
	ResourcesPackageKey string `yaml:"resourcesPackageKey" json:"resourcesPackageKey"`
	State               int    `yaml:"state" json:"state"`
}

// LiveWorkspace is the published workspace all others are layered on
const LiveWorkspace = "live"

// Workspace is a named, possibly layered branch of the content tree
type Workspace struct {
	Name string

	// BaseWorkspaces lists the workspaces this one is layered on.
	// The last element is the nearest base, the first the most distant one.
	BaseWorkspaces []*Workspace
}

// NearestBase returns the workspace this one is directly based on, or nil
func (w *Workspace) NearestBase() *Workspace {
	if len(w.BaseWorkspaces) == 0 {
		return nil
	}
	return w.BaseWorkspaces[len(w.BaseWorkspaces)-1]
}

// Node is a typed, positioned unit of content within a workspace
type Node interface {
	// Identifier returns the stable node identifier
	Identifier() string
	// Name returns the node name, the last path segment
	Name() string
	// Path returns the absolute node path
	Path() string
	// ParentPath returns the path of the parent node
	ParentPath() string
	// Depth returns the number of path segments, the root node has depth 0
	Depth() int
	// Parent returns the parent node, or nil for the root node
	Parent() Node
	// NodeType returns the type of the node
	NodeType() *NodeType
	// Dimensions returns the dimension values this node variant belongs to
	Dimensions() map[string][]string
	// Property returns the current value of a property, or nil
	Property(name string) any
	// PropertyNames returns the names of the properties stored on the node in lexical order
	PropertyNames() []string
	// Index returns the sibling sort position
	Index() int
	// IsRemoved reports whether the node has been removed
	IsRemoved() bool
	// Site returns the site the node belongs to, or nil
	Site() *Site
	// String returns a human readable representation for log lines
	String() string
}
