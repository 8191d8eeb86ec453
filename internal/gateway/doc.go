// Package gateway exposes tool collections as MCP servers over HTTP.
//
// The Dispatcher routes JSON-RPC methods, the Router resolves wire tool
// names to an execution path (remote bridge or registry executor), and the
// Server provides the unary and SSE transports. Tool-execution failures are
// reported inside successful JSON-RPC responses with isError set; protocol
// failures use JSON-RPC error envelopes.
package gateway
