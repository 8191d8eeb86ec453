package schema

import "strings"

// removedKeywords are deleted from every node: constraint keywords the
// downstream dialect rejects, conditional composition, and meta declarations.
var removedKeywords = map[string]struct{}{
	"multipleOf":            {},
	"exclusiveMinimum":      {},
	"exclusiveMaximum":      {},
	"minLength":             {},
	"maxLength":             {},
	"pattern":               {},
	"maxItems":              {},
	"uniqueItems":           {},
	"contains":              {},
	"minContains":           {},
	"maxContains":           {},
	"minProperties":         {},
	"maxProperties":         {},
	"patternProperties":     {},
	"if":                    {},
	"then":                  {},
	"else":                  {},
	"dependentRequired":     {},
	"dependentSchemas":      {},
	"prefixItems":           {},
	"unevaluatedProperties": {},
	"unevaluatedItems":      {},
	"contentMediaType":      {},
	"contentEncoding":       {},
	"$schema":               {},
}

// primitiveTypes are the seven recognized JSON Schema type names.
var primitiveTypes = map[string]struct{}{
	"string":  {},
	"number":  {},
	"integer": {},
	"boolean": {},
	"object":  {},
	"array":   {},
	"null":    {},
}

// Fallback returns the empty-object schema used whenever a node cannot be
// repaired. Callers receive a fresh map on every call.
func Fallback() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Sanitize coerces an arbitrary schema-like value into the restricted
// dialect. It never fails and never mutates its input; output maps are
// freshly built.
//
// Per node, in order: unsupported keywords are deleted (minItems is capped
// at 1), the type field is normalized (arrays of type names become an anyOf
// of single-type schemas), a type conflicting with a sibling oneOf/anyOf is
// dropped in favor of the composition, absolute-URL $refs are stripped, and
// the transform recurses into properties, items, additionalProperties,
// composition members, and $defs/definitions.
//
// The root of the result always carries a type field, with one exception:
// an untyped anyOf whose members are all single-type schemas (the shape the
// type-array normalization itself produces) is preserved as-is. Any other
// untyped top-level composition, and any non-object input, degrades to
// Fallback().
//
// Example:
//
//	Sanitize(map[string]any{"type": []any{"string", "null"}, "minLength": 5})
//	// map[string]any{"anyOf": []any{
//	//   map[string]any{"type": "string"},
//	//   map[string]any{"type": "null"},
//	// }}
func Sanitize(v any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			out = Fallback()
		}
	}()

	node, ok := v.(map[string]any)
	if !ok {
		return Fallback()
	}

	return finalizeRoot(sanitizeNode(node))
}

// sanitizeNode applies the per-node transform and recurses. It returns a new
// map and leaves the input untouched.
func sanitizeNode(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if _, drop := removedKeywords[k]; drop {
			continue
		}

		out[k] = v
	}

	capMinItems(out)
	normalizeType(out)
	resolveTypeConflict(out)
	stripAbsoluteRef(out)
	recurse(out)

	return out
}

// capMinItems clamps a numeric minItems to at most 1 and drops non-numeric
// values.
func capMinItems(node map[string]any) {
	v, ok := node["minItems"]
	if !ok {
		return
	}

	switch n := v.(type) {
	case float64:
		if n > 1 {
			node["minItems"] = float64(1)
		}
	case int:
		if n > 1 {
			node["minItems"] = 1
		}
	case int64:
		if n > 1 {
			node["minItems"] = int64(1)
		}
	default:
		delete(node, "minItems")
	}
}

// normalizeType reduces the type field to a single recognized primitive.
// An array of type names keeps the sole valid entry, becomes an anyOf of
// single-type schemas when several are valid (unless the node already has
// its own anyOf), or is deleted when none are. Unrecognized scalars are
// deleted.
func normalizeType(node map[string]any) {
	v, ok := node["type"]
	if !ok {
		return
	}

	switch t := v.(type) {
	case string:
		if !isPrimitive(t) {
			delete(node, "type")
		}

	case []any:
		normalizeTypeList(node, typeStrings(t))

	case []string:
		normalizeTypeList(node, typeStrings(anySlice(t)))

	default:
		delete(node, "type")
	}
}

func normalizeTypeList(node map[string]any, valid []string) {
	delete(node, "type")

	switch len(valid) {
	case 0:
	case 1:
		node["type"] = valid[0]
	default:
		if _, has := node["anyOf"]; has {
			return
		}

		members := make([]any, 0, len(valid))
		for _, t := range valid {
			members = append(members, map[string]any{"type": t})
		}

		node["anyOf"] = members
	}
}

// typeStrings filters a raw type list down to recognized primitive names.
func typeStrings(list []any) []string {
	valid := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && isPrimitive(s) {
			valid = append(valid, s)
		}
	}

	return valid
}

func anySlice(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}

	return out
}

func isPrimitive(t string) bool {
	_, ok := primitiveTypes[t]

	return ok
}

// resolveTypeConflict drops a scalar type contradicted by a sibling
// oneOf/anyOf member, along with the properties and additionalProperties
// left over from the dropped wrapper type.
func resolveTypeConflict(node map[string]any) {
	ts, ok := node["type"].(string)
	if !ok {
		return
	}

	if !conflictsWithMembers(node, "oneOf", ts) && !conflictsWithMembers(node, "anyOf", ts) {
		return
	}

	delete(node, "type")
	delete(node, "properties")
	delete(node, "additionalProperties")
}

func conflictsWithMembers(node map[string]any, keyword, nodeType string) bool {
	members, ok := node[keyword].([]any)
	if !ok {
		return false
	}

	for _, m := range members {
		member, ok := m.(map[string]any)
		if !ok {
			continue
		}

		if mt, ok := member["type"].(string); ok && mt != nodeType {
			return true
		}
	}

	return false
}

// stripAbsoluteRef removes $refs that point outside the document,
// substituting type object when the node would otherwise be untyped.
// Same-document references are kept.
func stripAbsoluteRef(node map[string]any) {
	ref, ok := node["$ref"].(string)
	if !ok {
		return
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return
	}

	delete(node, "$ref")

	if _, hasType := node["type"]; !hasType {
		node["type"] = "object"
	}
}

// recurse sanitizes every nested schema position.
func recurse(node map[string]any) {
	if props, ok := node["properties"].(map[string]any); ok {
		cleaned := make(map[string]any, len(props))
		for name, sub := range props {
			cleaned[name] = sanitizeChild(sub)
		}

		node["properties"] = cleaned
	}

	switch items := node["items"].(type) {
	case map[string]any:
		node["items"] = sanitizeNode(items)
	case []any:
		cleaned := make([]any, len(items))
		for i, sub := range items {
			cleaned[i] = sanitizeChild(sub)
		}

		node["items"] = cleaned
	}

	if ap, ok := node["additionalProperties"].(map[string]any); ok {
		node["additionalProperties"] = sanitizeNode(ap)
	}

	for _, keyword := range []string{"anyOf", "oneOf", "allOf"} {
		members, ok := node[keyword].([]any)
		if !ok {
			continue
		}

		cleaned := make([]any, len(members))
		for i, m := range members {
			cleaned[i] = sanitizeChild(m)
		}

		node[keyword] = cleaned
	}

	for _, keyword := range []string{"$defs", "definitions"} {
		defs, ok := node[keyword].(map[string]any)
		if !ok {
			continue
		}

		cleaned := make(map[string]any, len(defs))
		for name, sub := range defs {
			cleaned[name] = sanitizeChild(sub)
		}

		node[keyword] = cleaned
	}
}

// sanitizeChild sanitizes a nested value when it is a schema object and
// passes everything else through unchanged (boolean schemas stay booleans).
func sanitizeChild(v any) any {
	if sub, ok := v.(map[string]any); ok {
		return sanitizeNode(sub)
	}

	return v
}

// finalizeRoot enforces the top-level shape: the root keeps its type, or is
// a normal-form anyOf, or degrades. A root with neither a type nor a
// composition keyword is stamped as an object.
func finalizeRoot(node map[string]any) map[string]any {
	if _, ok := node["type"]; ok {
		return node
	}

	if isNormalFormAnyOf(node) {
		return node
	}

	for _, keyword := range []string{"anyOf", "oneOf", "allOf"} {
		if _, ok := node[keyword]; ok {
			return Fallback()
		}
	}

	node["type"] = "object"

	return node
}

// isNormalFormAnyOf reports whether the node is an untyped anyOf whose every
// member is exactly a single-type schema, the shape normalizeType produces
// from a type array. Such roots are valid without a top-level type.
func isNormalFormAnyOf(node map[string]any) bool {
	members, ok := node["anyOf"].([]any)
	if !ok || len(members) == 0 {
		return false
	}

	if _, ok := node["oneOf"]; ok {
		return false
	}

	if _, ok := node["allOf"]; ok {
		return false
	}

	for _, m := range members {
		member, ok := m.(map[string]any)
		if !ok || len(member) != 1 {
			return false
		}

		mt, ok := member["type"].(string)
		if !ok || !isPrimitive(mt) {
			return false
		}
	}

	return true
}
