// ABOUTME: Package documentation for the gateway package
// ABOUTME: Describes the HTTP surface and the push path

// Package gateway serves the courier HTTP surface: the REST message API,
// the WebSocket live endpoint, health, and metrics.
//
// Every authenticated request carries a JWT resolved to a user ID before it
// reaches a handler. A WebSocket connection registers with the presence
// registry on open and deregisters on every exit path; the registry channel
// closing is the writer's shutdown signal.
//
// The gateway is also the dispatch service's Pusher: stored messages are
// fanned out to the receiver's live connections best effort, with delivery
// and drop counts recorded in metrics.
package gateway
