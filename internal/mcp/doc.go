// Package mcp defines the JSON-RPC 2.0 wire model the gateway speaks to MCP
// clients, plus helpers for building tool results and converting them to
// wire payloads.
//
// Envelope types mirror the MCP protocol revision 2024-11-05. Tool results
// are built as SDK CallToolResult values and flattened to map payloads just
// before serialization.
package mcp
