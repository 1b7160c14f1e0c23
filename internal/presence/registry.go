// ABOUTME: Process-local registry mapping user IDs to their live connections
// ABOUTME: Fans persisted messages out to every connection of a user, drop-on-full

package presence

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/courier/internal/store"
)

// sendBufferSize is the outbound channel buffer for each connection.
const sendBufferSize = 64

// ErrConnBound indicates a connection ID is already registered to a
// different user. A connection is bound to exactly one identity for its
// lifetime.
var ErrConnBound = errors.New("connection bound to another user")

// Registry tracks which users currently have live connections. It is
// process-local, in-memory, and non-persistent: a restart loses all
// presence state and reconnecting clients re-register.
//
// Each connection gets a buffered typed channel that the transport layer
// drains. Deregistration closes the channel, which is the transport's
// signal to shut the connection down.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[string]chan *store.Message // userID -> connID -> outbound
	owners map[string]string                         // connID -> userID
	logger *slog.Logger
}

// NewRegistry creates a registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		users:  make(map[string]map[string]chan *store.Message),
		owners: make(map[string]string),
		logger: logger.With("component", "presence"),
	}
}

// Register adds connID to userID's connection set and returns the outbound
// channel the transport should drain. Registering the same connID for the
// same user again is a no-op that returns the existing channel. A connID
// already bound to a different user is rejected with ErrConnBound.
func (r *Registry) Register(userID, connID string) (<-chan *store.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[connID]; ok {
		if owner != userID {
			return nil, ErrConnBound
		}
		return r.users[userID][connID], nil
	}

	ch := make(chan *store.Message, sendBufferSize)
	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(map[string]chan *store.Message)
	}
	r.users[userID][connID] = ch
	r.owners[connID] = userID

	r.logger.Debug("connection registered",
		"user_id", userID,
		"conn_id", connID,
		"user_connections", len(r.users[userID]),
	)
	return ch, nil
}

// Deregister removes connID from whichever user owns it and closes its
// channel. Unknown connection IDs are a no-op, so callers on every
// disconnect path can invoke it without coordinating.
func (r *Registry) Deregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return
	}

	delete(r.owners, connID)
	conns := r.users[userID]
	ch := conns[connID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
	close(ch)

	r.logger.Debug("connection deregistered",
		"user_id", userID,
		"conn_id", connID,
		"user_connections", len(conns),
	)
}

// ConnectionsFor returns the IDs of userID's live connections. The result
// reflects every registration and deregistration that completed before the
// call; it may be empty.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	return ids
}

// Online reports whether userID has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Counts returns the number of live connections and distinct online users.
func (r *Registry) Counts() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners), len(r.users)
}

// Broadcast delivers msg to every live connection of userID without
// blocking: a saturated connection drops the message rather than holding up
// the user's other connections. Returns delivered and dropped counts.
//
// Sends happen under the read lock. They are non-blocking, and holding the
// lock excludes a concurrent Deregister from closing a channel mid-send.
func (r *Registry) Broadcast(userID string, msg *store.Message) (delivered, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID, ch := range r.users[userID] {
		select {
		case ch <- msg:
			delivered++
		default:
			dropped++
			r.logger.Debug("dropped message for slow connection",
				"user_id", userID,
				"conn_id", connID,
				"message_id", msg.ID,
			)
		}
	}
	return delivered, dropped
}

// Close deregisters every connection and closes all channels.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, conns := range r.users {
		for connID, ch := range conns {
			close(ch)
			delete(conns, connID)
			delete(r.owners, connID)
		}
		delete(r.users, userID)
	}

	r.logger.Debug("presence registry closed")
}
