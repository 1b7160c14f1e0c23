// ABOUTME: REST API handlers for sending messages and fetching conversation history
// ABOUTME: Maps store and dispatch errors onto HTTP status codes with JSON bodies

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/2389/courier/internal/auth"
	"github.com/2389/courier/internal/store"
)

var validate = validator.New()

type sendMessageRequest struct {
	Receiver string `json:"receiver" validate:"required,max=128"`
	Text     string `json:"text" validate:"required"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	Messages   []messageJSON `json:"messages"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

func toMessageJSON(m *store.Message) messageJSON {
	return messageJSON{
		ID:        m.ID,
		Sender:    m.Sender,
		Receiver:  m.Receiver,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}

func (g *Gateway) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", g.handleHealth).Methods(http.MethodGet)
	if g.config.Metrics.Enabled {
		r.Handle(g.config.Metrics.Path, g.metrics.Handler()).Methods(http.MethodGet)
	}

	authed := auth.Middleware(g.verifier)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authed)
	api.HandleFunc("/messages", g.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/{peer}", g.handleHistory).Methods(http.MethodGet)

	r.Handle("/ws", authed(http.HandlerFunc(g.handleWS))).Methods(http.MethodGet)

	return r
}

func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sender, ok := auth.UserFromContext(r.Context())
	if !ok {
		sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "receiver and text are required")
		return
	}

	if !g.limiters.Allow(sender) {
		g.logger.Warn("rate limit exceeded", "user_id", sender)
		sendJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	msg, err := g.dispatch.Send(r.Context(), sender, req.Receiver, req.Text)
	if err != nil {
		g.writeDispatchError(w, err)
		return
	}

	g.metrics.MessagesSent.Inc()
	sendJSON(w, http.StatusCreated, toMessageJSON(msg))
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.UserFromContext(r.Context())
	if !ok {
		sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peer := mux.Vars(r)["peer"]

	limit := g.config.Limits.HistoryPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := g.dispatch.History(r.Context(), requester, peer, limit, cursor)
	if err != nil {
		g.writeDispatchError(w, err)
		return
	}

	resp := historyResponse{
		Messages:   make([]messageJSON, 0, len(page.Messages)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, m := range page.Messages {
		resp.Messages = append(resp.Messages, toMessageJSON(m))
	}
	sendJSON(w, http.StatusOK, resp)
}

// writeDispatchError maps sentinel errors from the store layer onto HTTP
// statuses. Unknown errors are reported as unavailable rather than leaking
// internals.
func (g *Gateway) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidMessage):
		sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidCursor):
		sendJSONError(w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, store.ErrUnavailable):
		g.logger.Error("store unavailable", "error", err)
		sendJSONError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		g.logger.Error("request failed", "error", err)
		sendJSONError(w, http.StatusServiceUnavailable, "storage unavailable")
	}
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, map[string]string{"error": msg})
}
