package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/russellballestrini/tpmjs-sub004/internal/bridge"
	"github.com/russellballestrini/tpmjs-sub004/internal/catalog"
	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
	"github.com/russellballestrini/tpmjs-sub004/internal/executor"
	"github.com/russellballestrini/tpmjs-sub004/internal/mcp"
	"github.com/russellballestrini/tpmjs-sub004/internal/wirename"
)

const (
	// DefaultCallTimeout bounds how long a bridge call waits for its result.
	DefaultCallTimeout = 300 * time.Second

	// DefaultStalenessWindow is how long after the last heartbeat a bridge
	// connection is still considered live for call routing.
	DefaultStalenessWindow = 2 * time.Minute
)

// RouterConfig carries the router's collaborators and tuning.
//
// Zero CallTimeout and StalenessWindow fall back to the defaults.
type RouterConfig struct {
	Catalog         catalog.Catalog
	Connections     bridge.ConnectionStore
	Relay           *bridge.Relay
	Executor        executor.Executor
	CallTimeout     time.Duration
	StalenessWindow time.Duration
}

// Router resolves a wire tool name to an execution path and runs the call.
//
// Bridge-prefixed names relay to the owner's remote poller; everything else
// resolves against the registry catalog and runs on the collection's
// executor endpoint. Tool-execution failures come back as result maps with
// isError set; only protocol-level faults produce an *mcp.Error.
type Router struct {
	log             *slog.Logger
	catalog         catalog.Catalog
	conns           bridge.ConnectionStore
	relay           *bridge.Relay
	exec            executor.Executor
	callTimeout     time.Duration
	stalenessWindow time.Duration
}

// NewRouter creates a router from cfg.
func NewRouter(log *slog.Logger, cfg RouterConfig) *Router {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}

	return &Router{
		log:             log.With("component", "router"),
		catalog:         cfg.Catalog,
		conns:           cfg.Connections,
		relay:           cfg.Relay,
		exec:            cfg.Executor,
		callTimeout:     cfg.CallTimeout,
		stalenessWindow: cfg.StalenessWindow,
	}
}

// Call executes the named tool for a collection.
//
// The returned map is the tools/call result payload. A non-nil *mcp.Error
// means the request itself failed (unknown tool, internal fault) and no
// result exists.
func (r *Router) Call(
	ctx context.Context,
	col *catalog.Collection,
	wireName string,
	arguments map[string]any,
) (map[string]any, *mcp.Error) {
	switch id := wirename.Decode(wireName).(type) {
	case *wirename.BridgeIdentity:
		return r.callBridge(ctx, col, wireName, id, arguments)

	case *wirename.RegistryIdentity:
		return r.callRegistry(ctx, col, wireName, id, arguments)

	default:
		return nil, toolNotFound(wireName)
	}
}

// callBridge relays a call to the collection owner's remote bridge.
func (r *Router) callBridge(
	ctx context.Context,
	col *catalog.Collection,
	wireName string,
	id *wirename.BridgeIdentity,
	arguments map[string]any,
) (map[string]any, *mcp.Error) {
	r.log.Debug("Routing bridge call",
		"collection_id", col.ID,
		"server_id", id.ServerID,
		"tool", id.ToolName,
	)

	decl, err := r.findBridgeTool(ctx, col, wireName)
	if err != nil {
		r.log.Error("Failed to load collection tools", "collection_id", col.ID, "error", err)

		return nil, internalError()
	}

	if decl == nil {
		return nil, toolNotFound(wireName)
	}

	if err := r.bridgeLive(ctx, col.OwnerUserID); err != nil {
		return mcp.ErrorResultMap(err.Error()), nil
	}

	res, err := r.relay.Call(ctx, &bridge.Call{
		UserID:    col.OwnerUserID,
		ServerID:  decl.ServerID,
		ToolName:  decl.ToolName,
		Arguments: arguments,
	}, r.callTimeout)

	switch {
	case stderrors.Is(err, errors.ErrCallTimeout):
		return mcp.ErrorResultMap(fmt.Sprintf("no response from bridge after %s", r.callTimeout)), nil

	case err != nil:
		r.log.Error("Bridge call failed", "error", err)

		return nil, internalError()
	}

	if res.Err != "" {
		return mcp.ErrorResultMap(res.Err), nil
	}

	return mcp.ResultToMap(mcp.PayloadResult(res.Payload)), nil
}

// bridgeLive reports whether the user's bridge can take a call right now.
// The returned error text is what the agent reads in the tool result.
func (r *Router) bridgeLive(ctx context.Context, userID string) error {
	conn, err := r.conns.Connection(ctx, userID)
	if err != nil || conn.Status != bridge.StatusConnected {
		return fmt.Errorf("%w for user %s", errors.ErrBridgeNotConnected, userID)
	}

	if since := time.Since(conn.LastSeen); since > r.stalenessWindow {
		return fmt.Errorf("%w (last heartbeat %s ago)", errors.ErrBridgeStale, since.Round(time.Second))
	}

	return nil
}

// findBridgeTool matches a wire name against the collection's declared
// bridge tools.
//
// Matching re-encodes each declaration rather than comparing decoded
// halves: encoding is lossy, so the wire name is the only stable key.
// Returns nil without error when nothing matches.
func (r *Router) findBridgeTool(ctx context.Context, col *catalog.Collection, wireName string) (*catalog.BridgeTool, error) {
	tools, err := r.catalog.CollectionTools(ctx, col.ID)
	if err != nil {
		return nil, err
	}

	for i := range tools.Bridge {
		t := &tools.Bridge[i]
		if wirename.EncodeBridge(t.ServerID, t.ToolName) == wireName {
			return t, nil
		}
	}

	return nil, nil
}

// callRegistry resolves a registry tool and runs it on the collection's
// executor endpoint.
func (r *Router) callRegistry(
	ctx context.Context,
	col *catalog.Collection,
	wireName string,
	id *wirename.RegistryIdentity,
	arguments map[string]any,
) (map[string]any, *mcp.Error) {
	r.log.Debug("Routing registry call",
		"collection_id", col.ID,
		"tool", id.ToolName,
		"candidates", len(id.PackageCandidates),
	)

	tool, err := r.catalog.Lookup(ctx, id.PackageCandidates, id.ToolName)
	if err != nil {
		if stderrors.Is(err, errors.ErrToolNotFound) {
			return nil, toolNotFound(wireName)
		}

		r.log.Error("Catalog lookup failed", "tool", id.ToolName, "error", err)

		return nil, internalError()
	}

	result, err := r.exec.Execute(ctx, col.Executor, tool.PackageName, tool.ToolName, arguments)
	if err != nil {
		r.log.Warn("Executor call failed",
			"package", tool.PackageName,
			"tool", tool.ToolName,
			"error", err,
		)

		return mcp.ErrorResultMap(err.Error()), nil
	}

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "tool execution failed"
		}

		return mcp.ErrorResultMap(msg), nil
	}

	return mcp.ResultToMap(mcp.PayloadResult(result.Output)), nil
}

func toolNotFound(wireName string) *mcp.Error {
	return &mcp.Error{
		Code:    mcp.ErrorCodeInvalidParams,
		Message: fmt.Sprintf("Tool not found: %s", wireName),
	}
}

func internalError() *mcp.Error {
	return &mcp.Error{
		Code:    mcp.ErrorCodeInternalError,
		Message: "Internal error",
	}
}
