package errors

import (
	"errors"
	"fmt"
)

// GatewayError is the base interface for all gateway errors.
type GatewayError interface {
	error
	IsGatewayError() bool
}

// Compile-time verification that all error types implement GatewayError.
var (
	_ GatewayError = (*ExecutorError)(nil)
	_ GatewayError = (*SeedError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrCallTimeout indicates a bridge call expired before a result arrived.
	ErrCallTimeout = errors.New("bridge call timeout")

	// ErrRelayClosed indicates the bridge relay has been shut down.
	ErrRelayClosed = errors.New("bridge relay closed")

	// ErrCollectionNotFound indicates the addressed collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrToolNotFound indicates no catalog entry matched the requested tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrBridgeNotConnected indicates the owning user has no live bridge
	// connection.
	ErrBridgeNotConnected = errors.New("bridge not connected")

	// ErrBridgeStale indicates the bridge connection has not sent a
	// heartbeat within the staleness window.
	ErrBridgeStale = errors.New("bridge connection stale")

	// ErrConnectionNotFound indicates no bridge connection record exists
	// for the user.
	ErrConnectionNotFound = errors.New("bridge connection not found")
)

// ExecutorError indicates the registry executor failed to service a call.
// This covers transport failures and malformed executor responses, not
// tool-level failures reported by the executor itself.
type ExecutorError struct {
	PackageName string
	ToolName    string
	Err         error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor call failed for %s/%s: %v", e.PackageName, e.ToolName, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// IsGatewayError implements GatewayError.
func (e *ExecutorError) IsGatewayError() bool { return true }

// SeedError indicates a catalog seed file could not be loaded.
type SeedError struct {
	Path string
	Err  error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("failed to load catalog seed %s: %v", e.Path, e.Err)
}

func (e *SeedError) Unwrap() error {
	return e.Err
}

// IsGatewayError implements GatewayError.
func (e *SeedError) IsGatewayError() bool { return true }
