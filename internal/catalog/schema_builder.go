package catalog

import (
	"encoding/json"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// SimpleSchema creates a jsonschema.Schema from a property-name-to-Go-type
// map. Every property is required.
//
// Input format: {"count": "int", "text": "string"}
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)
		required = append(required, name)
	}

	sort.Strings(required)

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// goTypeToJSONSchema converts a Go type string to a JSON Schema type.
func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	default:
		if len(goType) > 2 && goType[:2] == "[]" {
			return &jsonschema.Schema{
				Type:  "array",
				Items: goTypeToJSONSchema(goType[2:]),
			}
		}

		// Default to string
		return &jsonschema.Schema{Type: "string"}
	}
}

// SchemaMap converts a typed schema into the map form stored on catalog
// rows, via a JSON round-trip. A nil schema or a conversion failure yields
// nil; the sanitizer turns that into the empty-object fallback at list time.
func SchemaMap(s *jsonschema.Schema) map[string]any {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}

	return m
}
