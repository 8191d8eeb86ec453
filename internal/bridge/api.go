package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// PollerAPI is the HTTP surface remote bridge pollers drive.
//
// Pollers heartbeat to stay connected, drain their call queue, and post
// results back. All endpoints speak JSON.
type PollerAPI struct {
	log   *slog.Logger
	relay *Relay
	conns ConnectionWriter
}

// NewPollerAPI creates the poller-facing API.
func NewPollerAPI(log *slog.Logger, relay *Relay, conns ConnectionWriter) *PollerAPI {
	return &PollerAPI{
		log:   log.With("component", "poller_api"),
		relay: relay,
		conns: conns,
	}
}

// Register mounts the poller endpoints on mux.
func (a *PollerAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /bridge/heartbeat", a.handleHeartbeat)
	mux.HandleFunc("POST /bridge/disconnect", a.handleDisconnect)
	mux.HandleFunc("GET /bridge/calls", a.handleCalls)
	mux.HandleFunc("POST /bridge/results", a.handleResults)
}

type heartbeatRequest struct {
	UserID string         `json:"userId"`
	Tools  []DeclaredTool `json:"tools,omitempty"`
}

type disconnectRequest struct {
	UserID string `json:"userId"`
}

type resultRequest struct {
	CallID string `json:"callId"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

func (a *PollerAPI) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required", nil)
		return
	}

	conn := a.conns.Heartbeat(req.UserID, req.Tools)
	a.log.Debug("Bridge heartbeat", "user_id", req.UserID, "declared_tools", len(conn.DeclaredTools))

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   conn.UserID,
		"status":   conn.Status,
		"lastSeen": conn.LastSeen.Format(time.RFC3339),
	})
}

func (a *PollerAPI) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required", nil)
		return
	}

	if !a.conns.Disconnect(req.UserID) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("no connection for user %q", req.UserID), nil)
		return
	}

	a.log.Info("Bridge disconnected", "user_id", req.UserID)

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": req.UserID,
		"status": StatusDisconnected,
	})
}

func (a *PollerAPI) handleCalls(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryParam(r, "user")
	if !ok || userID == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "user query parameter is required", nil)
		return
	}

	calls := a.relay.PickupFor(userID)
	if calls == nil {
		calls = []*Call{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"calls": calls,
	})
}

func (a *PollerAPI) handleResults(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if req.CallID == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "callId is required", nil)
		return
	}

	delivered := a.relay.Resolve(req.CallID, &Result{
		Payload: req.Result,
		Err:     req.Error,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"delivered": delivered,
	})
}

func queryParam(r *http.Request, key string) (string, bool) {
	values, ok := r.URL.Query()[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func decodeJSONBody(r *http.Request, target any) error {
	if target == nil {
		return errors.New("decode target is nil")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
