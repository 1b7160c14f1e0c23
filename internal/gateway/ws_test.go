// ABOUTME: WebSocket endpoint tests covering live delivery, fan-out, and deregistration
// ABOUTME: Dials a real httptest server and reads pushed frames off the wire

package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv string) string {
	return "ws" + strings.TrimPrefix(srv, "http") + "/ws"
}

func dialWS(t *testing.T, srv, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) eventFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame eventFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func waitOnline(t *testing.T, g *Gateway, userID string, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.registry.Online(userID) == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWS_ReceivesPushedMessage(t *testing.T) {
	g, srv := setupGateway(t, nil)
	conn := dialWS(t, srv.URL, tokenFor(t, "bob"))
	waitOnline(t, g, "bob", true)

	sent, err := g.dispatch.Send(context.Background(), "alice", "bob", "hello bob")
	require.NoError(t, err)

	frame := readFrame(t, conn)
	assert.Equal(t, "newMessage", frame.Event)
	assert.Equal(t, sent.ID, frame.Data.ID)
	assert.Equal(t, "alice", frame.Data.Sender)
	assert.Equal(t, "bob", frame.Data.Receiver)
	assert.Equal(t, "hello bob", frame.Data.Text)
}

func TestWS_FanOutToAllConnections(t *testing.T) {
	g, srv := setupGateway(t, nil)
	tok := tokenFor(t, "bob")
	connA := dialWS(t, srv.URL, tok)
	connB := dialWS(t, srv.URL, tok)
	require.Eventually(t, func() bool {
		conns, _ := g.registry.Counts()
		return conns == 2
	}, 5*time.Second, 10*time.Millisecond)

	sent, err := g.dispatch.Send(context.Background(), "alice", "bob", "to both")
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{connA, connB} {
		frame := readFrame(t, conn)
		assert.Equal(t, sent.ID, frame.Data.ID)
	}
}

func TestWS_SenderNotEchoed(t *testing.T) {
	g, srv := setupGateway(t, nil)
	aliceConn := dialWS(t, srv.URL, tokenFor(t, "alice"))
	bobConn := dialWS(t, srv.URL, tokenFor(t, "bob"))
	waitOnline(t, g, "alice", true)
	waitOnline(t, g, "bob", true)

	_, err := g.dispatch.Send(context.Background(), "alice", "bob", "only for bob")
	require.NoError(t, err)

	readFrame(t, bobConn)

	// The sender's own connection gets nothing
	require.NoError(t, aliceConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var frame eventFrame
	err = aliceConn.ReadJSON(&frame)
	assert.Error(t, err)
}

func TestWS_DisconnectDeregisters(t *testing.T) {
	g, srv := setupGateway(t, nil)
	conn := dialWS(t, srv.URL, tokenFor(t, "bob"))
	waitOnline(t, g, "bob", true)

	conn.Close()
	waitOnline(t, g, "bob", false)

	// Pushing after disconnect delivers to no one and does not error
	_, err := g.dispatch.Send(context.Background(), "alice", "bob", "into the void")
	require.NoError(t, err)
}

func TestWS_AbruptCloseDeregisters(t *testing.T) {
	g, srv := setupGateway(t, nil)
	conn := dialWS(t, srv.URL, tokenFor(t, "bob"))
	waitOnline(t, g, "bob", true)

	// Kill the TCP connection without a close handshake
	require.NoError(t, conn.UnderlyingConn().Close())
	waitOnline(t, g, "bob", false)
}

func TestWS_Unauthenticated(t *testing.T) {
	_, srv := setupGateway(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_BadToken(t *testing.T) {
	_, srv := setupGateway(t, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"?token=garbage", nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_SendThenReceiveRoundTrip(t *testing.T) {
	g, srv := setupGateway(t, nil)
	bobConn := dialWS(t, srv.URL, tokenFor(t, "bob"))
	waitOnline(t, g, "bob", true)

	// Deliver over the REST API, receive over the socket
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tokenFor(t, "alice"),
		map[string]string{"receiver": "bob", "text": "via REST"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody[messageJSON](t, resp)

	frame := readFrame(t, bobConn)
	assert.Equal(t, "newMessage", frame.Event)
	assert.Equal(t, sent.ID, frame.Data.ID)
	assert.Equal(t, "via REST", frame.Data.Text)
}
