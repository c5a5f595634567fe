// Package schemaconv converts a subset of JSON Schema into a lightweight
// runtime Validator (spec §4.6). The conversion is deliberately lossy:
// unknown keywords, oneOf/anyOf, enums and string formats are all dropped.
// mcgravity is a passthrough — upstreams remain the authority on their own
// tool input; this package exists only so the aggregator can sanity-check
// the coarse shape of arguments before forwarding them, never to reject
// anything the upstream itself would accept.
package schemaconv

import "fmt"

// Kind is the coarse shape a Validator checks.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindArray
	KindObject
)

// Validator checks the coarse shape of one JSON value against a converted
// JSON-Schema fragment.
type Validator struct {
	Kind       Kind
	Items      *Validator            // set when Kind == KindArray
	Properties map[string]*Validator // set when Kind == KindObject with properties
}

// Convert translates a JSON-Schema fragment (as decoded by encoding/json
// into map[string]any) into a Validator, per the recognized forms in
// spec §4.6. Anything outside those forms degrades to KindAny.
func Convert(schema map[string]any) *Validator {
	if schema == nil {
		return &Validator{Kind: KindAny}
	}

	typ, _ := schema["type"].(string)
	switch typ {
	case "string":
		return &Validator{Kind: KindString}
	case "number":
		return &Validator{Kind: KindNumber}
	case "integer":
		return &Validator{Kind: KindInteger}
	case "boolean":
		return &Validator{Kind: KindBoolean}
	case "array":
		items, _ := schema["items"].(map[string]any)
		itemType, _ := items["type"].(string)
		switch itemType {
		case "string", "number", "integer", "boolean":
			return &Validator{Kind: KindArray, Items: Convert(items)}
		default:
			return &Validator{Kind: KindArray, Items: &Validator{Kind: KindAny}}
		}
	case "object":
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			return &Validator{Kind: KindObject}
		}
		fields := make(map[string]*Validator, len(props))
		for name, raw := range props {
			propSchema, _ := raw.(map[string]any)
			fields[name] = Convert(propSchema)
		}
		return &Validator{Kind: KindObject, Properties: fields}
	default:
		return &Validator{Kind: KindAny}
	}
}

// Check reports whether value has the coarse shape v describes. It is
// intentionally permissive: it never returns an error for anything JSON
// Schema itself would have to inspect keywords Convert drops to answer.
func (v *Validator) Check(value any) error {
	if v == nil || v.Kind == KindAny {
		return nil
	}
	switch v.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case KindNumber, KindInteger:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case KindArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		for i, item := range items {
			if err := v.Items.Check(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		for name, propValidator := range v.Properties {
			propValue, present := obj[name]
			if !present {
				continue
			}
			if err := propValidator.Check(propValue); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
		}
	}
	return nil
}
