// Package bridge relays tool calls between blocked gateway requests and
// remote bridge pollers.
//
// The Relay owns the process-wide correlation table: each enqueued call
// suspends its caller on a per-call single-fire channel until the poller
// posts a result or the call times out. The connection store tracks poller
// liveness via heartbeats, and the poller API is the HTTP surface the remote
// side drives.
package bridge
