// Package presence tracks which users currently have live connections.
//
// The registry is the shared mutable heart of the realtime path: every
// connect, disconnect, push, and lookup goes through it. A user may hold
// several simultaneous connections (multiple tabs); each gets its own
// buffered channel, and a message pushed to the user is fanned out to all
// of them. A connection ID belongs to at most one user at a time.
//
// The registry is deliberately an injected instance rather than a process
// global, so tests can run isolated registries side by side. It models a
// single-server deployment: there is no cross-process synchronization, and
// restart loses all presence state by design.
package presence
