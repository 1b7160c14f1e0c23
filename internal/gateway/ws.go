// ABOUTME: WebSocket endpoint carrying live message pushes to connected clients
// ABOUTME: One registry channel and one writer goroutine per connection, deregistered on any exit

package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/courier/internal/auth"
	"github.com/2389/courier/internal/store"
)

const (
	writeWait = 10 * time.Second

	// Inbound frames are control traffic only; anything larger is abuse.
	maxInboundBytes = 512
)

// eventFrame is the wire format for server-to-client pushes.
type eventFrame struct {
	Event string      `json:"event"`
	Data  messageJSON `json:"data"`
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		g.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	connID := uuid.NewString()
	ch, err := g.registry.Register(userID, connID)
	if err != nil {
		g.logger.Error("registering connection", "user_id", userID, "conn_id", connID, "error", err)
		conn.Close()
		return
	}
	g.syncPresenceGauges()
	g.logger.Info("connection opened", "user_id", userID, "conn_id", connID)

	done := make(chan struct{})
	go g.writePump(conn, ch, done)

	g.readPump(conn)

	// Deregister closes the registry channel, which stops the writer. The
	// connection is not considered finished until this completes.
	g.registry.Deregister(connID)
	<-done
	conn.Close()
	g.syncPresenceGauges()
	g.logger.Info("connection closed", "user_id", userID, "conn_id", connID)
}

// writePump drains the registry channel onto the socket and keeps the
// connection alive with periodic pings. It exits when the channel is closed
// or a write fails.
func (g *Gateway) writePump(conn *websocket.Conn, ch <-chan *store.Message, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.config.Presence.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			frame := eventFrame{Event: "newMessage", Data: toMessageJSON(msg)}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames until the peer disconnects or goes
// silent past the pong timeout. Clients do not send application data over
// the socket; reads exist to surface close frames and pongs.
func (g *Gateway) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxInboundBytes)
	conn.SetReadDeadline(time.Now().Add(g.config.Presence.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.config.Presence.PongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
