// ABOUTME: HTTP API tests covering send, history, auth, rate limits, and error mapping
// ABOUTME: Exercises the full router with an in-memory store via httptest

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier/internal/auth"
	"github.com/2389/courier/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	cfg.Auth.JWTSecret = testSecret
	cfg.Presence.PingInterval = config.DefaultPingInterval
	cfg.Presence.PongTimeout = config.DefaultPongTimeout
	cfg.Limits.MaxMessageBytes = config.DefaultMaxMessageBytes
	cfg.Limits.SendRPS = 1000
	cfg.Limits.SendBurst = 1000
	cfg.Limits.HistoryPageSize = config.DefaultHistoryPage
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = config.DefaultMetricsPath
	return cfg
}

func setupGateway(t *testing.T, cfg *config.Config) (*Gateway, *httptest.Server) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	g, err := New(cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(g.routes())
	t.Cleanup(func() {
		srv.Close()
		g.registry.Close()
		g.store.Close()
	})
	return g, srv
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.NewJWTVerifier([]byte(testSecret)).Generate(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestSendMessage_Success(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
		map[string]string{"receiver": "bob", "text": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := decodeBody[messageJSON](t, resp)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "bob", msg.Receiver)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestSendMessage_Unauthenticated(t *testing.T) {
	_, srv := setupGateway(t, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", "",
		map[string]string{"receiver": "bob", "text": "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendMessage_BadRequests(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	tests := []struct {
		name string
		body any
	}{
		{"missing receiver", map[string]string{"text": "hello"}},
		{"missing text", map[string]string{"receiver": "bob"}},
		{"empty text", map[string]string{"receiver": "bob", "text": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSendMessage_MalformedJSON(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/messages",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_OversizedText(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
		map[string]string{"receiver": "bob", "text": strings.Repeat("x", 5000)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.SendRPS = 1
	cfg.Limits.SendBurst = 2
	_, srv := setupGateway(t, cfg)
	tok := tokenFor(t, "alice")

	for i := 0; i < 2; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
			map[string]string{"receiver": "bob", "text": "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
		map[string]string{"receiver": "bob", "text": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Other users have their own bucket
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/messages", tokenFor(t, "carol"),
		map[string]string{"receiver": "bob", "text": "hi"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHistory_OrderedBothDirections(t *testing.T) {
	_, srv := setupGateway(t, nil)
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")

	for i, tok := range []string{alice, bob, alice} {
		receiver := "bob"
		if tok == bob {
			receiver = "alice"
		}
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
			map[string]string{"receiver": receiver, "text": fmt.Sprintf("msg %d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/bob", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := decodeBody[historyResponse](t, resp)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "msg 0", page.Messages[0].Text)
	assert.Equal(t, "msg 1", page.Messages[1].Text)
	assert.Equal(t, "msg 2", page.Messages[2].Text)
	assert.Equal(t, "bob", page.Messages[1].Sender)
	assert.False(t, page.HasMore)
}

func TestHistory_Pagination(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	for i := 0; i < 5; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/messages", tok,
			map[string]string{"receiver": "bob", "text": fmt.Sprintf("msg %d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/bob?limit=2", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody[historyResponse](t, resp)
	require.Len(t, first.Messages, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	resp = doJSON(t, http.MethodGet,
		srv.URL+"/api/messages/bob?limit=2&cursor="+first.NextCursor, tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody[historyResponse](t, resp)
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "msg 2", second.Messages[0].Text)
}

func TestHistory_BadParams(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	tests := []struct {
		name string
		path string
	}{
		{"invalid cursor", "/api/messages/bob?cursor=%25%25not-base64"},
		{"non-numeric limit", "/api/messages/bob?limit=ten"},
		{"zero limit", "/api/messages/bob?limit=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, srv.URL+tt.path, tok, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestHistory_EmptyConversation(t *testing.T) {
	_, srv := setupGateway(t, nil)
	tok := tokenFor(t, "alice")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/messages/stranger", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := decodeBody[historyResponse](t, resp)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestHealthz(t *testing.T) {
	_, srv := setupGateway(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := setupGateway(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	_, srv := setupGateway(t, cfg)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
