// Package integration exercises the assembled gateway over real HTTP: the
// MCP surface and the bridge poller surface composed on one mux, with the
// registry executor running as a separate HTTP backend, the way the pieces
// are deployed together.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/russellballestrini/tpmjs-sub004/internal/bridge"
	"github.com/russellballestrini/tpmjs-sub004/internal/catalog"
	"github.com/russellballestrini/tpmjs-sub004/internal/executor"
	"github.com/russellballestrini/tpmjs-sub004/internal/gateway"
	"github.com/russellballestrini/tpmjs-sub004/internal/mcp"
	"github.com/stretchr/testify/require"
)

// executorBackend is a stand-in for the registry's execution service.
type executorBackend struct {
	mu       sync.Mutex
	requests []executorRequest
}

type executorRequest struct {
	Auth        string
	PackageName string
	ToolName    string
	Params      map[string]any
}

func (b *executorBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PackageName string         `json:"packageName"`
			ToolName    string         `json:"toolName"`
			Params      map[string]any `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b.mu.Lock()
		b.requests = append(b.requests, executorRequest{
			Auth:        r.Header.Get("Authorization"),
			PackageName: body.PackageName,
			ToolName:    body.ToolName,
			Params:      body.Params,
		})
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"output":"executed %s"}`, body.ToolName)
	})
}

func (b *executorBackend) recorded() []executorRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]executorRequest, len(b.requests))
	copy(out, b.requests)

	return out
}

// startGateway assembles the full server stack and returns its base URL
// alongside the executor backend for request inspection.
func startGateway(t *testing.T) (string, *executorBackend) {
	t.Helper()

	backend := &executorBackend{}
	backendServer := httptest.NewServer(backend.handler())
	t.Cleanup(backendServer.Close)

	cat := catalog.NewMemory()
	colID := cat.AddCollection(catalog.Collection{
		ID:          "col-1",
		Name:        "Integration",
		OwnerUserID: "user-1",
		Executor:    catalog.ExecutorConfig{URL: backendServer.URL, Token: "integration-token"},
	})
	require.NoError(t, cat.AddTool(colID, catalog.Tool{
		PackageName: "@tpmjs/tools-weather",
		ToolName:    "getWeatherTool",
		Description: "Current conditions",
	}))
	require.NoError(t, cat.AddBridgeTool(colID, catalog.BridgeTool{
		ServerID:    "local-tools",
		ToolName:    "echo",
		Description: "Echo text back",
	}))

	log := slog.Default()
	conns := bridge.NewMemoryConnectionStore()

	relay := bridge.NewRelay(log)
	t.Cleanup(relay.Close)

	router := gateway.NewRouter(log, gateway.RouterConfig{
		Catalog:     cat,
		Connections: conns,
		Relay:       relay,
		Executor:    executor.NewHTTPExecutor(log, nil),
	})

	dispatcher := gateway.NewDispatcher(log, cat, conns, router, mcp.Implementation{
		Name:    "tpmjs-gateway",
		Version: "test",
	})

	mux := http.NewServeMux()
	gateway.NewServer(log, dispatcher).Register(mux)
	bridge.NewPollerAPI(log, relay, conns).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server.URL, backend
}

// rpcEnvelope is the JSON-RPC response as decoded from the wire.
type rpcEnvelope struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  map[string]any `json:"result"`
	Error   map[string]any `json:"error"`
}

func rpc(t *testing.T, baseURL string, id any, method string, params any) rpcEnvelope {
	t.Helper()

	body := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		body["params"] = params
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/mcp/col-1", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, id, env.ID)

	return env
}

func postBridge(t *testing.T, baseURL, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)

	return resp
}

func toolNames(t *testing.T, env rpcEnvelope) []string {
	t.Helper()

	require.Nil(t, env.Error)

	tools, ok := env.Result["tools"].([]any)
	require.True(t, ok)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		entry, ok := tool.(map[string]any)
		require.True(t, ok)
		names = append(names, entry["name"].(string))
	}

	return names
}

func contentText(t *testing.T, result map[string]any) string {
	t.Helper()

	content, ok := result["content"].([]any)
	require.True(t, ok, "result has no content: %v", result)
	require.Len(t, content, 1)

	block, ok := content[0].(map[string]any)
	require.True(t, ok)

	return block["text"].(string)
}

// TestRegistryFlow drives the agent-side session for a registry tool: the
// handshake, listing, and a call that lands on the executor backend.
func TestRegistryFlow(t *testing.T) {
	baseURL, backend := startGateway(t)

	env := rpc(t, baseURL, float64(1), "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
	})
	require.Nil(t, env.Error)
	require.Equal(t, "2024-11-05", env.Result["protocolVersion"])

	rpc(t, baseURL, nil, "notifications/initialized", nil)

	// No bridge connected: the bridge tool stays hidden
	env = rpc(t, baseURL, float64(2), "tools/list", nil)
	require.Equal(t, []string{"weather--getWeather"}, toolNames(t, env))

	env = rpc(t, baseURL, float64(3), "tools/call", map[string]any{
		"name":      "weather--getWeather",
		"arguments": map[string]any{"city": "Oslo"},
	})
	require.Nil(t, env.Error)
	require.NotContains(t, env.Result, "isError")
	require.Equal(t, "executed getWeatherTool", contentText(t, env.Result))

	requests := backend.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, "Bearer integration-token", requests[0].Auth)
	require.Equal(t, "@tpmjs/tools-weather", requests[0].PackageName)
	require.Equal(t, "getWeatherTool", requests[0].ToolName)
	require.Equal(t, map[string]any{"city": "Oslo"}, requests[0].Params)
}

// TestBridgeFlow drives both sides of a bridge call: the poller connecting
// and serving the queue over HTTP while an agent call blocks on the relay.
func TestBridgeFlow(t *testing.T) {
	baseURL, _ := startGateway(t)

	resp := postBridge(t, baseURL, "/bridge/heartbeat", map[string]any{"userId": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	env := rpc(t, baseURL, float64(1), "tools/list", nil)
	require.Equal(t, []string{"weather--getWeather", "bridge--local-tools--echo"}, toolNames(t, env))

	type callOutcome struct {
		env rpcEnvelope
	}

	done := make(chan callOutcome, 1)

	go func() {
		env := rpc(t, baseURL, float64(2), "tools/call", map[string]any{
			"name":      "bridge--local-tools--echo",
			"arguments": map[string]any{"text": "hello"},
		})
		done <- callOutcome{env: env}
	}()

	// Poll the queue the way a real poller does
	callID := ""
	deadline := time.Now().Add(2 * time.Second)

	for callID == "" && time.Now().Before(deadline) {
		queueResp, err := http.Get(baseURL + "/bridge/calls?user=user-1")
		require.NoError(t, err)

		var queue struct {
			Calls []struct {
				CallID    string         `json:"callId"`
				ServerID  string         `json:"serverId"`
				ToolName  string         `json:"toolName"`
				Arguments map[string]any `json:"arguments"`
			} `json:"calls"`
		}
		require.NoError(t, json.NewDecoder(queueResp.Body).Decode(&queue))
		queueResp.Body.Close()

		if len(queue.Calls) > 0 {
			require.Equal(t, "local-tools", queue.Calls[0].ServerID)
			require.Equal(t, "echo", queue.Calls[0].ToolName)
			require.Equal(t, map[string]any{"text": "hello"}, queue.Calls[0].Arguments)
			callID = queue.Calls[0].CallID
		} else {
			time.Sleep(5 * time.Millisecond)
		}
	}

	require.NotEmpty(t, callID, "bridge call never reached the queue")

	resp = postBridge(t, baseURL, "/bridge/results", map[string]any{
		"callId": callID,
		"result": "hello",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var delivery struct {
		Delivered bool `json:"delivered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&delivery))
	resp.Body.Close()
	require.True(t, delivery.Delivered)

	outcome := <-done
	require.Nil(t, outcome.env.Error)
	require.NotContains(t, outcome.env.Result, "isError")
	require.Equal(t, "hello", contentText(t, outcome.env.Result))

	// Disconnect hides the bridge tool and fails further calls softly
	resp = postBridge(t, baseURL, "/bridge/disconnect", map[string]any{"userId": "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	env = rpc(t, baseURL, float64(3), "tools/list", nil)
	require.Equal(t, []string{"weather--getWeather"}, toolNames(t, env))

	env = rpc(t, baseURL, float64(4), "tools/call", map[string]any{
		"name": "bridge--local-tools--echo",
	})
	require.Nil(t, env.Error)
	require.Equal(t, true, env.Result["isError"])
	require.Contains(t, contentText(t, env.Result), "bridge not connected")
}
