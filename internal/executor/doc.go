// Package executor invokes registry tools on a collection's executor
// endpoint over HTTP.
package executor
