// Package store persists direct-message conversation history.
//
// The store is an append-only log: messages are created exactly once on a
// successful send and are never mutated or deleted. History for a pair of
// users covers both directions of the conversation and is ordered by the
// store-assigned sequence number, which reflects append order.
//
// Pagination uses an opaque cursor anchored at the sequence number of the
// last message on the previous page, so pages are disjoint and stable even
// as new messages arrive.
//
// The SQLite implementation uses modernc.org/sqlite (pure Go, no cgo) with
// WAL mode enabled. Passing ":memory:" as the path creates an ephemeral
// store, which the tests rely on.
package store
