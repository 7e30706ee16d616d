package nodetype

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stacklok/content-replicator/internal/content"
)

type coerceFunc func(ctx context.Context, value any, r Resolver) (any, error)

func coercer(propertyType content.PropertyType) coerceFunc {
	switch propertyType {
	case content.PropertyTypeInteger:
		return toInteger
	case content.PropertyTypeFloat:
		return toFloat
	case content.PropertyTypeBoolean:
		return toBoolean
	case content.PropertyTypeDateTime:
		return toDateTime
	case content.PropertyTypeArray:
		return toArray
	case content.PropertyTypeReference:
		return toReference
	case content.PropertyTypeReferences:
		return toReferences
	case content.PropertyTypeAsset, content.PropertyTypeImage:
		return toAsset
	default:
		return toString
	}
}

func toString(_ context.Context, value any, _ Resolver) (any, error) {
	switch v := value.(type) {
	case nil, string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("expected a string, got %T", value)
}

func toInteger(_ context.Context, value any, _ Resolver) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	case string:
		if v == "" {
			return nil, nil
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("expected an integer: %w", err)
		}
		return i, nil
	}
	return nil, fmt.Errorf("expected an integer, got %T", value)
}

func toFloat(_ context.Context, value any, _ Resolver) (any, error) {
	switch v := value.(type) {
	case nil, float64:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number: %w", err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("expected a number, got %T", value)
}

func toBoolean(_ context.Context, value any, _ Resolver) (any, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		return v == "true" || v == "1", nil
	}
	return nil, fmt.Errorf("expected a boolean, got %T", value)
}

// toDateTime keeps valid W3C timestamps and drops everything else
func toDateTime(_ context.Context, value any, _ Resolver) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, nil
	}
	return t.Format(time.RFC3339), nil
}

func toArray(_ context.Context, value any, _ Resolver) (any, error) {
	switch v := value.(type) {
	case nil, []any, map[string]any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("expected a JSON encoded array: %w", err)
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("expected an array, got %T", value)
}

// toReference drops references to nodes the target does not know
func toReference(ctx context.Context, value any, r Resolver) (any, error) {
	identifier, ok := value.(string)
	if !ok || identifier == "" {
		return nil, nil
	}
	exists, err := r.NodeExists(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return identifier, nil
}

// toReferences keeps the references to nodes the target knows, in order
func toReferences(ctx context.Context, value any, r Resolver) (any, error) {
	if value == nil {
		return []string{}, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of identifiers, got %T", value)
	}
	identifiers := make([]string, 0, len(list))
	for _, item := range list {
		identifier, ok := item.(string)
		if !ok {
			continue
		}
		exists, err := r.NodeExists(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if exists {
			identifiers = append(identifiers, identifier)
		}
	}
	return identifiers, nil
}

// toAsset resolves an asset reference given as {"__identity": ...}, raw or JSON encoded
func toAsset(ctx context.Context, value any, r Resolver) (any, error) {
	var identity string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		if !gjson.Valid(v) {
			return nil, fmt.Errorf("expected a JSON encoded asset reference")
		}
		identity = gjson.Get(v, "__identity").String()
	case map[string]any:
		identity, _ = v["__identity"].(string)
	default:
		return nil, fmt.Errorf("expected an asset reference, got %T", value)
	}
	if identity == "" {
		return nil, fmt.Errorf("asset reference without identity")
	}

	exists, err := r.AssetExists(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("asset %s has not been replicated", identity)
	}
	return identity, nil
}
