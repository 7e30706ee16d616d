package replication

import (
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stacklok/content-replicator/internal/content"
	"github.com/stacklok/content-replicator/internal/httpclient"
)

// SerializeProperties converts the declared properties of a node into the
// transport form understood by the target API. Unstructured nodes also carry
// their undeclared stored properties as plain values.
//
// Identity markers (double underscore) are included when set, and the sibling
// position is added as _index.
func SerializeProperties(node content.Node) (map[string]any, error) {
	nodeType := node.NodeType()
	properties := make(map[string]any, len(nodeType.PropertyNames())+1)

	for _, name := range nodeType.PropertyNames() {
		if content.IsIdentityMarker(name) {
			continue
		}
		definition, _ := nodeType.Property(name)
		value, err := convertProperty(definition.Type, node.Property(name))
		if err != nil {
			return nil, &httpclient.SerializationError{Err: fmt.Errorf("property %s of node %s: %w", name, node, err)}
		}
		properties[name] = value
	}

	if nodeType.Name() == content.UnstructuredNodeType {
		for _, name := range node.PropertyNames() {
			if _, declared := nodeType.Property(name); declared || content.IsIdentityMarker(name) {
				continue
			}
			properties[name] = node.Property(name)
		}
	}

	for _, name := range nodeType.PropertyNames() {
		if !content.IsIdentityMarker(name) {
			continue
		}
		if value := node.Property(name); value != nil {
			properties[name] = value
		}
	}

	properties[content.PropertyIndex] = node.Index()
	return properties, nil
}

func convertProperty(propertyType content.PropertyType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch propertyType {
	case content.PropertyTypeDateTime:
		if t, ok := value.(time.Time); ok {
			return t.Format(time.RFC3339), nil
		}
	case content.PropertyTypeReference:
		if node, ok := value.(content.Node); ok {
			return node.Identifier(), nil
		}
	case content.PropertyTypeReferences:
		if nodes, ok := value.([]content.Node); ok {
			identifiers := make([]string, 0, len(nodes))
			for _, node := range nodes {
				identifiers = append(identifiers, node.Identifier())
			}
			return identifiers, nil
		}
	case content.PropertyTypeArray:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil
	case content.PropertyTypeAsset, content.PropertyTypeImage:
		if asset, ok := value.(*content.Asset); ok {
			encoded, err := json.Marshal(assetReference(asset))
			if err != nil {
				return nil, err
			}
			return string(encoded), nil
		}
	}
	return value, nil
}

func assetReference(asset *content.Asset) map[string]any {
	return map[string]any{
		"__identity": asset.Identifier,
		"__type":     string(asset.Type),
	}
}

// assetPayload builds the transferable form of an asset. Variants carry a
// reference to their original and the adjustments, originals carry the
// binary resource.
func assetPayload(asset *content.Asset) map[string]any {
	payload := assetReference(asset)

	if asset.IsVariant() {
		payload["originalAsset"] = assetReference(asset.OriginalAsset)
		payload["adjustments"] = asset.Adjustments
		return payload
	}

	payload["title"] = asset.Title
	payload["caption"] = asset.Caption
	if resource := asset.Resource; resource != nil {
		sum := resource.SHA1
		if sum == "" {
			digest := sha1.Sum(resource.Content) //nolint:gosec // content addressing, not security
			sum = hex.EncodeToString(digest[:])
		}
		payload["resource"] = map[string]any{
			"filename":       resource.Filename,
			"mediaType":      resource.MediaType,
			"collectionName": resource.CollectionName,
			"sha1":           sum,
			"content":        base64.StdEncoding.EncodeToString(resource.Content),
		}
	}
	return payload
}
