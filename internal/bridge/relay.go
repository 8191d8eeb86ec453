package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
)

// Call is a single tool invocation enqueued for a remote bridge.
//
// The JSON shape is what pollers receive from GET /bridge/calls. UserID is
// routing state only and never crosses the wire.
type Call struct {
	CallID     string         `json:"callId"`
	UserID     string         `json:"-"`
	ServerID   string         `json:"serverId"`
	ToolName   string         `json:"toolName"`
	Arguments  map[string]any `json:"arguments"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// Result is the poller's answer to a call.
//
// Exactly one of Payload and Err is meaningful: a non-empty Err marks the
// call as failed on the remote side, otherwise Payload carries the tool
// output verbatim.
type Result struct {
	CallID      string
	Payload     any
	Err         string
	RespondedAt time.Time
}

// pendingCall tracks an enqueued call awaiting its result.
type pendingCall struct {
	call   *Call
	result chan *Result
	picked bool
}

// Relay correlates enqueued bridge calls with results posted by pollers.
//
// Each Call registers a pending entry keyed by a generated call ID and
// blocks the calling goroutine until Resolve delivers a result, the timeout
// expires, the context is cancelled, or the relay is closed. Pollers drain
// their queue with PickupFor and answer with Resolve.
//
// All methods are safe for concurrent use.
type Relay struct {
	log *slog.Logger

	// Call tracking
	pendingMu sync.RWMutex
	pending   map[string]*pendingCall

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
}

// NewRelay creates a relay with no pending calls.
func NewRelay(log *slog.Logger) *Relay {
	return &Relay{
		log:     log.With("component", "relay"),
		pending: make(map[string]*pendingCall, 10),
		done:    make(chan struct{}),
	}
}

// Close shuts the relay down and wakes every blocked caller.
//
// Waiters observe the closed done channel, purge their own pending entries,
// and return ErrRelayClosed. Close is safe to call multiple times.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// Done returns a channel that is closed when the relay shuts down.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

// Call enqueues a bridge call and blocks until the result arrives.
//
// The relay fills in CallID and EnqueuedAt. The timeout parameter bounds
// how long the caller waits for the poller to respond; use context
// cancellation for overall request deadlines.
//
// Returns ErrCallTimeout if no result arrives in time, ErrRelayClosed if
// the relay shuts down while waiting, or the context error on cancellation.
// A Result whose Err field is non-empty is still a successful delivery.
func (r *Relay) Call(ctx context.Context, call *Call, timeout time.Duration) (*Result, error) {
	select {
	case <-r.done:
		return nil, errors.ErrRelayClosed
	default:
	}

	call.CallID = r.generateCallID()
	call.EnqueuedAt = time.Now()

	r.log.Debug("Enqueueing bridge call",
		"call_id", call.CallID,
		"user_id", call.UserID,
		"tool", call.ToolName,
	)

	// Create pending call tracker
	resultChan := make(chan *Result, 1)
	pending := &pendingCall{
		call:   call,
		result: resultChan,
	}

	r.pendingMu.Lock()
	r.pending[call.CallID] = pending
	r.pendingMu.Unlock()

	// Wait for the poller to answer
	select {
	case res := <-resultChan:
		r.log.Debug("Bridge call resolved", "call_id", call.CallID)

		return res, nil

	case <-time.After(timeout):
		// Clean up pending call since we're exiting without a result
		r.pendingMu.Lock()
		delete(r.pending, call.CallID)
		r.pendingMu.Unlock()

		r.log.Warn("Bridge call timed out", "call_id", call.CallID, "timeout", timeout)

		return nil, fmt.Errorf("%w after %s", errors.ErrCallTimeout, timeout)

	case <-r.done:
		// Relay shut down - clean up and fail fast
		r.pendingMu.Lock()
		delete(r.pending, call.CallID)
		r.pendingMu.Unlock()

		r.log.Debug("Relay closed during call", "call_id", call.CallID)

		return nil, errors.ErrRelayClosed

	case <-ctx.Done():
		// Clean up pending call since we're exiting without a result
		r.pendingMu.Lock()
		delete(r.pending, call.CallID)
		r.pendingMu.Unlock()

		r.log.Debug("Bridge call cancelled", "call_id", call.CallID)

		return nil, ctx.Err()
	}
}

// PickupFor returns the calls queued for a bridge user, oldest first.
//
// Each call is delivered to the poller exactly once: returned calls are
// marked picked and skipped on later pickups. They stay pending until
// resolved, so a poller that crashes mid-call leaves the waiter to hit
// its timeout rather than re-executing the tool.
func (r *Relay) PickupFor(userID string) []*Call {
	r.pendingMu.Lock()

	var calls []*Call

	for _, p := range r.pending {
		if p.call.UserID != userID || p.picked {
			continue
		}

		p.picked = true

		calls = append(calls, p.call)
	}

	r.pendingMu.Unlock()

	sort.Slice(calls, func(i, j int) bool {
		return calls[i].EnqueuedAt.Before(calls[j].EnqueuedAt)
	})

	if len(calls) > 0 {
		r.log.Debug("Delivered calls to poller", "user_id", userID, "count", len(calls))
	}

	return calls
}

// Resolve delivers a result to the waiter for the given call ID.
//
// The pending entry is claimed and deleted atomically, so a second Resolve
// for the same ID is a no-op. Returns false when no waiter exists, either
// because the ID is unknown or the call already timed out.
func (r *Relay) Resolve(callID string, res *Result) bool {
	// Find and claim pending call atomically
	r.pendingMu.Lock()

	pending, exists := r.pending[callID]
	if exists {
		delete(r.pending, callID)
	}

	r.pendingMu.Unlock()

	if !exists {
		r.log.Warn("No pending call for result", "call_id", callID)

		return false
	}

	res.CallID = callID

	if res.RespondedAt.IsZero() {
		res.RespondedAt = time.Now()
	}

	r.log.Debug("Resolving bridge call", "call_id", callID, "is_error", res.Err != "")

	// Send to waiting goroutine (we own it now, blocking is safe since channel is buffered)
	pending.result <- res

	return true
}

// PendingCount reports how many calls are awaiting results.
func (r *Relay) PendingCount() int {
	r.pendingMu.RLock()
	defer r.pendingMu.RUnlock()

	return len(r.pending)
}

// generateCallID creates a unique call ID using ULID.
func (r *Relay) generateCallID() string {
	return ulid.Make().String()
}
