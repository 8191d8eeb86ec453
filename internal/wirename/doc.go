// Package wirename maps internal tool identities to and from wire-safe names.
//
// The forward transform is lossy: organizational prefixes, a conventional
// suffix, and overlong tails are stripped to satisfy the wire constraint
// (charset [a-zA-Z0-9_-], at most 64 characters). Decoding therefore returns
// an ordered list of candidate package names for registry tools; the catalog
// lookup is the disambiguator. Bridge names carry a fixed prefix and decode
// unambiguously.
package wirename
