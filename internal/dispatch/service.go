// ABOUTME: Message dispatch service orchestrating the send and history paths
// ABOUTME: Persists via the store, then best-effort pushes to the recipient's live connections

package dispatch

import (
	"context"
	"log/slog"

	"github.com/2389/courier/internal/store"
)

// Pusher delivers a persisted message to a user's live connections.
// Delivery is fire-and-forget: implementations never return an error and
// never block on a slow or dead connection.
type Pusher interface {
	Push(userID string, msg *store.Message)
}

// Service coordinates the write path: validate, persist, then push to the
// recipient if they are online. History reads flow straight from the store.
type Service struct {
	store  store.Store
	pusher Pusher
	logger *slog.Logger
}

// NewService creates a dispatch service. Pass nil logger for default.
func NewService(st store.Store, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		pusher: pusher,
		logger: logger.With("component", "dispatch"),
	}
}

// Send validates and persists a message from sender to receiver, then pushes
// it to the receiver's live connections if any exist. The returned message is
// the persisted record; push outcome never affects it. An offline receiver is
// a normal, non-error case, caught up on their next history fetch.
//
// A request cancelled before the append completes stores nothing and pushes
// nothing. If cancellation races with a completed append, the message stays
// durably stored and only the push is skipped.
func (s *Service) Send(ctx context.Context, sender, receiver, text string) (*store.Message, error) {
	msg, err := s.store.AppendMessage(ctx, sender, receiver, text)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		s.logger.Debug("send cancelled after append, skipping push",
			"message_id", msg.ID,
			"receiver", receiver,
		)
		return msg, nil
	}

	s.pusher.Push(receiver, msg)
	return msg, nil
}

// History returns a page of the conversation between requester and peer.
// Any authenticated requester may currently fetch any pair's history; the
// participant check the source system lacked is preserved as-is.
func (s *Service) History(ctx context.Context, requester, peer string, limit int, cursor string) (*store.ConversationPage, error) {
	return s.store.GetConversation(ctx, store.ConversationParams{
		UserA:  requester,
		UserB:  peer,
		Limit:  limit,
		Cursor: cursor,
	})
}
