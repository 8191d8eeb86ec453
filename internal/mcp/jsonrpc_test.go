package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseSerialization(t *testing.T) {
	t.Run("success envelope echoes the request id", func(t *testing.T) {
		data, err := json.Marshal(NewResponse(float64(7), map[string]any{"ok": true}))
		require.NoError(t, err)
		require.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`, string(data))
	})

	t.Run("missing id serializes as explicit null", func(t *testing.T) {
		data, err := json.Marshal(NewErrorResponse(nil, ErrorCodeParseError, "parse error"))
		require.NoError(t, err)
		require.JSONEq(
			t,
			`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`,
			string(data),
		)
	})

	t.Run("string ids are preserved", func(t *testing.T) {
		data, err := json.Marshal(NewResponse("req-1", "pong"))
		require.NoError(t, err)
		require.JSONEq(t, `{"jsonrpc":"2.0","id":"req-1","result":"pong"}`, string(data))
	})
}

func TestRequestParsing(t *testing.T) {
	var req Request
	err := json.Unmarshal(
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"a--b","arguments":{"x":1}}}`),
		&req,
	)
	require.NoError(t, err)
	require.Equal(t, "tools/call", req.Method)
	require.Equal(t, float64(3), req.ID)

	var params CallToolParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	require.Equal(t, "a--b", params.Name)
	require.Equal(t, map[string]any{"x": float64(1)}, params.Arguments)
}

func TestErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: ErrorCodeMethodNotFound, Message: "method not found"}

	require.Equal(t, "method not found", err.Error())
}

func TestToolSerialization(t *testing.T) {
	tool := Tool{
		Name:        "sprites-get--spritesGet",
		Description: "fetch a sprite",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}

	data, err := json.Marshal(ListToolsResult{Tools: []Tool{tool}})
	require.NoError(t, err)
	require.JSONEq(
		t,
		`{"tools":[{"name":"sprites-get--spritesGet","description":"fetch a sprite","inputSchema":{"type":"object","properties":{}}}]}`,
		string(data),
	)
}
