package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/russellballestrini/tpmjs-sub004/internal/bridge"
	"github.com/russellballestrini/tpmjs-sub004/internal/catalog"
	"github.com/russellballestrini/tpmjs-sub004/internal/mcp"
	"github.com/russellballestrini/tpmjs-sub004/internal/schema"
	"github.com/russellballestrini/tpmjs-sub004/internal/wirename"
)

// Dispatcher routes MCP JSON-RPC requests for a collection.
//
// Supported methods: initialize, tools/list, tools/call, ping, and the
// notifications/initialized acknowledgment. Every request gets exactly one
// response envelope echoing the request ID, null when the request carried
// none.
type Dispatcher struct {
	log     *slog.Logger
	catalog catalog.Catalog
	conns   bridge.ConnectionStore
	router  *Router
	info    mcp.Implementation
}

// NewDispatcher creates a dispatcher serving collections from cat.
//
// The connection store gates bridge tools in tools/list; the router owns
// tools/call execution. info is reported as serverInfo during initialize.
func NewDispatcher(
	log *slog.Logger,
	cat catalog.Catalog,
	conns bridge.ConnectionStore,
	router *Router,
	info mcp.Implementation,
) *Dispatcher {
	return &Dispatcher{
		log:     log.With("component", "dispatcher"),
		catalog: cat,
		conns:   conns,
		router:  router,
		info:    info,
	}
}

// Dispatch handles one JSON-RPC request addressed to a collection.
//
// Dispatch never returns nil and never panics: faults anywhere below it
// are converted into an internal-error envelope with a logged stack.
func (d *Dispatcher) Dispatch(ctx context.Context, collectionID string, req *mcp.Request) (resp *mcp.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Panic during dispatch",
				"method", req.Method,
				"collection_id", collectionID,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			resp = mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInternalError, "Internal error")
		}
	}()

	col, err := d.catalog.Collection(ctx, collectionID)
	if err != nil {
		d.log.Warn("Request for unknown collection", "collection_id", collectionID)

		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInvalidParams,
			fmt.Sprintf("Unknown collection: %s", collectionID))
	}

	d.log.Debug("Dispatching request", "method", req.Method, "collection_id", collectionID)

	switch req.Method {
	case "initialize":
		return d.handleInitialize(req)

	case "notifications/initialized", "ping":
		// Acknowledged with an empty result
		return mcp.NewResponse(req.ID, map[string]any{})

	case "tools/list":
		return d.handleToolsList(ctx, col, req)

	case "tools/call":
		return d.handleToolsCall(ctx, col, req)

	default:
		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// handleInitialize reports the protocol revision and server identity.
func (d *Dispatcher) handleInitialize(req *mcp.Request) *mcp.Response {
	return mcp.NewResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
		ServerInfo: d.info,
	})
}

// handleToolsList returns the collection's tools under their wire names.
//
// Registry tools are always listed. Bridge tools are listed only while the
// owning user's bridge is connected; staleness is a call-time concern and
// does not hide tools here.
func (d *Dispatcher) handleToolsList(ctx context.Context, col *catalog.Collection, req *mcp.Request) *mcp.Response {
	tools, err := d.catalog.CollectionTools(ctx, col.ID)
	if err != nil {
		d.log.Error("Failed to load collection tools", "collection_id", col.ID, "error", err)

		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInternalError, "Internal error")
	}

	list := make([]mcp.Tool, 0, len(tools.Registry)+len(tools.Bridge))

	for _, t := range tools.Registry {
		list = append(list, mcp.Tool{
			Name:        wirename.Encode(t.PackageName, t.ToolName),
			Description: t.Description,
			InputSchema: schema.Sanitize(t.InputSchema),
		})
	}

	if len(tools.Bridge) > 0 && d.bridgeConnected(ctx, col.OwnerUserID) {
		for _, t := range tools.Bridge {
			list = append(list, mcp.Tool{
				Name:        wirename.EncodeBridge(t.ServerID, t.ToolName),
				Description: t.Description,
				InputSchema: schema.Sanitize(t.InputSchema),
			})
		}
	}

	return mcp.NewResponse(req.ID, mcp.ListToolsResult{Tools: list})
}

// bridgeConnected reports whether the user's bridge is live right now.
func (d *Dispatcher) bridgeConnected(ctx context.Context, userID string) bool {
	conn, err := d.conns.Connection(ctx, userID)

	return err == nil && conn.Status == bridge.StatusConnected
}

// handleToolsCall validates params and delegates execution to the router.
func (d *Dispatcher) handleToolsCall(ctx context.Context, col *catalog.Collection, req *mcp.Request) *mcp.Response {
	if len(req.Params) == 0 {
		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInvalidParams, "Missing params for tools/call")
	}

	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInvalidParams, "Malformed params for tools/call")
	}

	if params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInvalidParams, "Missing tool name in params")
	}

	result, callErr := d.router.Call(ctx, col, params.Name, params.Arguments)
	if callErr != nil {
		return &mcp.Response{
			JSONRPC: mcp.Version,
			ID:      req.ID,
			Error:   callErr,
		}
	}

	return mcp.NewResponse(req.ID, result)
}
