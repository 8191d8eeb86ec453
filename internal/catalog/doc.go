// Package catalog holds the tool catalog boundary: collections, registry
// tool descriptors, and bridge tool declarations.
//
// The gateway consumes the Catalog interface only. The in-memory
// implementation backs the server binary and tests; it can be seeded from a
// YAML file and is safe for concurrent use.
package catalog
