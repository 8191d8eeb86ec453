// Package schema coerces arbitrary tool-declared JSON Schemas into the
// restricted dialect accepted by MCP clients.
//
// Sanitize is total: any input, including non-objects and malformed nesting,
// produces a usable schema node. Inputs that cannot be repaired degrade to
// the empty-object fallback rather than failing the surrounding tools/list
// or tools/call response.
package schema
