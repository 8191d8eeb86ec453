// Package errors defines error types shared across the gateway.
//
// This package provides sentinel errors for commonly checked conditions
// (missing collections, disconnected bridges, relay timeouts) and structured
// error types for failures that carry a cause. All error types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
