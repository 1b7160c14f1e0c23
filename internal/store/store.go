// ABOUTME: Store interface and data types for courier message persistence
// ABOUTME: Defines the Message struct and the Store interface for conversation history

package store

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMessage is returned when a message fails validation before any
// persistence attempt is made.
var ErrInvalidMessage = errors.New("invalid message")

// ErrUnavailable is returned when the backing store fails. It is never
// swallowed: a send must not report success if persistence failed.
var ErrUnavailable = errors.New("store unavailable")

// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Message is a single direct message between two users. Messages are created
// exactly once on a successful send and are never mutated or deleted.
type Message struct {
	// ID is a UUID assigned at persistence time.
	ID string

	// Seq is a monotonically increasing sequence number assigned by the
	// store on append. It is the creation-order sort key and the anchor
	// for history pagination.
	Seq int64

	Sender   string
	Receiver string
	Text     string

	// CreatedAt is assigned at persistence time, in UTC.
	CreatedAt time.Time
}

// ConversationParams specifies a paginated history query for the pair
// (UserA, UserB), covering messages in both directions.
type ConversationParams struct {
	UserA string
	UserB string

	// Limit is the page size: defaults to 50, capped at 500.
	Limit int

	// Cursor is an opaque cursor from a previous page, empty for the first.
	Cursor string
}

// ConversationPage is one page of conversation history in ascending
// creation order.
type ConversationPage struct {
	Messages   []*Message
	NextCursor string // empty if no more pages
	HasMore    bool
}

// Store is the durable append/query contract for conversation history.
type Store interface {
	// AppendMessage validates and persists a message, assigning its ID,
	// Seq, and CreatedAt. Fails with ErrInvalidMessage or ErrUnavailable.
	// Not idempotent: identical content produces a new message each call.
	AppendMessage(ctx context.Context, sender, receiver, text string) (*Message, error)

	// GetConversation returns a page of messages exchanged between the two
	// users, in either direction, ascending by creation order.
	GetConversation(ctx context.Context, params ConversationParams) (*ConversationPage, error)

	Close() error
}
