package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/russellballestrini/tpmjs-sub004/internal/mcp"
)

// Server is the MCP-facing HTTP surface.
//
// Each collection is addressable at /mcp/{collection} for plain JSON-RPC
// and /mcp/{collection}/sse for clients that expect the response framed as
// a server-sent event. Both transports are single-shot: one request, one
// response envelope.
type Server struct {
	log        *slog.Logger
	dispatcher *Dispatcher
}

// NewServer creates the HTTP surface around dispatcher.
func NewServer(log *slog.Logger, dispatcher *Dispatcher) *Server {
	return &Server{
		log:        log.With("component", "server"),
		dispatcher: dispatcher,
	}
}

// Register mounts the MCP endpoints and the health probe on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp/{collection}", s.handleUnary)
	mux.HandleFunc("POST /mcp/{collection}/sse", s.handleSSE)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// Handler returns an http.Handler exposing the MCP endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)

	return mux
}

func (s *Server) handleUnary(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("collection")
	log := s.log.With("request_id", uuid.NewString(), "collection_id", collectionID)

	req, ok := s.readRequest(w, r, log)
	if !ok {
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), collectionID, req)

	log.Info("Handled MCP request", "method", req.Method, "is_error", resp.Error != nil)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("collection")
	log := s.log.With("request_id", uuid.NewString(), "collection_id", collectionID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req, ok := s.readRequest(w, r, log)
	if !ok {
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), collectionID, req)

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("Failed to marshal response", "error", err)
		writeJSON(w, http.StatusInternalServerError,
			mcp.NewErrorResponse(req.ID, mcp.ErrorCodeInternalError, "Internal error"))

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	log.Info("Handled MCP request over SSE", "method", req.Method, "is_error", resp.Error != nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// readRequest parses the JSON-RPC envelope from the request body.
//
// An unparsable body is answered directly with HTTP 400 carrying a parse
// error envelope with a null ID, and readRequest reports false.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*mcp.Request, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warn("Failed to read request body", "error", err)
		writeJSON(w, http.StatusBadRequest,
			mcp.NewErrorResponse(nil, mcp.ErrorCodeParseError, "Parse error"))

		return nil, false
	}

	var req mcp.Request
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn("Unparsable request body", "error", err)
		writeJSON(w, http.StatusBadRequest,
			mcp.NewErrorResponse(nil, mcp.ErrorCodeParseError, "Parse error"))

		return nil, false
	}

	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
