// Package tracker waits for long-running remote operations (volume create
// and delete, instance lifecycle) by polling their status until a terminal
// state, a failure state, or a deadline.
//
// The tracker never compensates: a timed-out operation leaves the remote
// resource exactly as it was. Callers record the outcome themselves.
package tracker
