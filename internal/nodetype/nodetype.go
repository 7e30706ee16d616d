// Package nodetype applies replicated property values to stored nodes.
//
// Each declared node type is compiled once into a schema mapping property
// names to setters. Names with a single leading underscore set structural
// fields of the node, names with a double underscore are identity markers
// and never stored.
package nodetype

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/stacklok/content-replicator/internal/config"
	"github.com/stacklok/content-replicator/internal/content"
	"github.com/stacklok/content-replicator/internal/store"
	"github.com/stacklok/content-replicator/internal/validators"
)

// lastPublicationProperty is maintained by the receiving side and never applied
const lastPublicationProperty = "_lastPublicationDateTime"

var (
	// ErrUnknownNodeType is returned for node types the target does not declare
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownProperty is returned for properties the node type does not declare
	ErrUnknownProperty = errors.New("unknown property")
)

// PropertyError reports a property value that could not be applied
type PropertyError struct {
	NodeType string
	Property string
	Err      error
}

// Error implements the error interface
func (e *PropertyError) Error() string {
	return fmt.Sprintf("node type %s: property %s: %v", e.NodeType, e.Property, e.Err)
}

// Unwrap returns the underlying error
func (e *PropertyError) Unwrap() error {
	return e.Err
}

// Resolver checks references against the content of the target
type Resolver interface {
	// NodeExists reports whether a node with the identifier is visible to the node being written
	NodeExists(ctx context.Context, identifier string) (bool, error)
	// AssetExists reports whether the asset has been replicated
	AssetExists(ctx context.Context, identifier string) (bool, error)
}

type setter func(ctx context.Context, node *store.Node, name string, value any, r Resolver) error

// Schema is a compiled node type
type Schema struct {
	nodeType *content.NodeType
	setters  map[string]setter
	open     bool
}

// Name returns the node type name
func (s *Schema) Name() string {
	return s.nodeType.Name()
}

// Registry holds the compiled schemas of the declared node types
type Registry struct {
	schemas map[string]*Schema
	open    bool
}

// NewRegistry compiles the declared node types.
// With no declarations every node type is accepted and stored unstructured.
func NewRegistry(declarations map[string]config.NodeTypeConfig) (*Registry, error) {
	registry := &Registry{
		schemas: make(map[string]*Schema, len(declarations)+1),
		open:    len(declarations) == 0,
	}
	registry.schemas[content.UnstructuredNodeType] = compile(content.NewNodeType(content.UnstructuredNodeType, nil), true)

	names := make([]string, 0, len(declarations))
	for name := range declarations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		properties := make(map[string]content.PropertyDefinition, len(declarations[name].Properties))
		for property, declaration := range declarations[name].Properties {
			properties[property] = content.PropertyDefinition{Type: content.PropertyType(declaration.Type)}
		}
		nodeType := content.NewNodeType(name, properties)
		if err := nodeType.Validate(); err != nil {
			return nil, err
		}
		registry.schemas[name] = compile(nodeType, false)
	}
	return registry, nil
}

// Schema returns the compiled schema of the named node type
func (r *Registry) Schema(name string) (*Schema, error) {
	if name == "" {
		name = content.UnstructuredNodeType
	}
	if schema, ok := r.schemas[name]; ok {
		return schema, nil
	}
	if r.open {
		return r.schemas[content.UnstructuredNodeType], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, name)
}

// Apply sets the properties on the node.
// A _nodeType property is applied first so the remaining values follow the new type.
func (r *Registry) Apply(ctx context.Context, node *store.Node, properties map[string]any, resolver Resolver) error {
	if value, ok := properties[content.PropertyNodeType]; ok {
		name, isString := value.(string)
		if !isString || name == "" {
			return &PropertyError{NodeType: node.NodeType, Property: content.PropertyNodeType,
				Err: fmt.Errorf("expected a node type name, got %T", value)}
		}
		node.NodeType = name
	}
	if node.NodeType == "" {
		node.NodeType = content.UnstructuredNodeType
	}

	schema, err := r.Schema(node.NodeType)
	if err != nil {
		return err
	}
	return schema.Apply(ctx, node, properties, resolver)
}

// Apply sets the properties on the node in name order
func (s *Schema) Apply(ctx context.Context, node *store.Node, properties map[string]any, resolver Resolver) error {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	if node.Properties == nil {
		node.Properties = map[string]any{}
	}
	for _, name := range names {
		if name == lastPublicationProperty || name == content.PropertyNodeType || content.IsIdentityMarker(name) {
			continue
		}
		set, ok := s.setters[name]
		switch {
		case ok:
		case content.IsStructural(name):
			return &PropertyError{NodeType: s.Name(), Property: name, Err: ErrUnknownProperty}
		case s.open:
			set = setRaw
		default:
			return &PropertyError{NodeType: s.Name(), Property: name, Err: ErrUnknownProperty}
		}
		if err := set(ctx, node, name, properties[name], resolver); err != nil {
			return &PropertyError{NodeType: s.Name(), Property: name, Err: err}
		}
	}
	return nil
}

func compile(nodeType *content.NodeType, open bool) *Schema {
	schema := &Schema{
		nodeType: nodeType,
		setters:  make(map[string]setter, len(nodeType.PropertyNames())),
		open:     open,
	}
	for _, name := range nodeType.PropertyNames() {
		if content.IsIdentityMarker(name) {
			continue
		}
		definition, _ := nodeType.Property(name)
		schema.setters[name] = propertySetter(definition.Type)
	}
	schema.setters[content.PropertyName] = setName
	schema.setters[content.PropertyHidden] = setHidden
	schema.setters[content.PropertyIndex] = setIndex
	return schema
}

func propertySetter(propertyType content.PropertyType) setter {
	coerce := coercer(propertyType)
	return func(ctx context.Context, node *store.Node, name string, value any, r Resolver) error {
		coerced, err := coerce(ctx, value, r)
		if err != nil {
			return err
		}
		node.Properties[name] = coerced
		return nil
	}
}

func setRaw(_ context.Context, node *store.Node, name string, value any, _ Resolver) error {
	node.Properties[name] = value
	return nil
}

func setName(_ context.Context, node *store.Node, _ string, value any, _ Resolver) error {
	raw, ok := value.(string)
	if !ok {
		return fmt.Errorf("invalid node name %v", value)
	}
	name, err := validators.ValidateNodeName(raw)
	if err != nil {
		return err
	}
	if node.Path == "" {
		node.Path = path.Join("/", name)
		return nil
	}
	node.Path = path.Join(node.ParentPath(), name)
	return nil
}

func setHidden(ctx context.Context, node *store.Node, _ string, value any, r Resolver) error {
	hidden, err := toBoolean(ctx, value, r)
	if err != nil {
		return err
	}
	node.Hidden, _ = hidden.(bool)
	return nil
}

func setIndex(ctx context.Context, node *store.Node, _ string, value any, r Resolver) error {
	index, err := toInteger(ctx, value, r)
	if err != nil {
		return err
	}
	if index == nil {
		node.Index = 0
		return nil
	}
	node.Index = index.(int)
	return nil
}
