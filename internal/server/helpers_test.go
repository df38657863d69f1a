package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/server"
)

const testOrigin = "http://localhost:8080"

// testRoom is a running gateway behind an httptest server.
type testRoom struct {
	gateway *server.Gateway
	srv     *httptest.Server
}

func newTestRoom(t *testing.T, mutate func(*server.Config)) *testRoom {
	t.Helper()
	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	if mutate != nil {
		mutate(cfg)
	}

	g := server.NewGateway(*cfg, zap.NewNop())
	go g.Run()

	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		_ = g.Shutdown(2 * time.Second)
	})
	return &testRoom{gateway: g, srv: srv}
}

func (r *testRoom) wsURL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + server.PathWebSocket
}

// dial opens a WebSocket from the allowed origin.
func (r *testRoom) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := dialWithOrigin(r.wsURL(), testOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", origin)
	return dialer.Dial(url, headers)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(server.Envelope{Event: event, Data: raw}))
}

func join(t *testing.T, conn *websocket.Conn, name string) {
	t.Helper()
	sendEvent(t, conn, server.EventJoin, server.JoinPayload{Username: name})
}

func say(t *testing.T, conn *websocket.Conn, sender, text string) {
	t.Helper()
	sendEvent(t, conn, server.EventMessage, server.MessagePayload{Sender: sender, Msg: text})
}

func readEnvelope(t *testing.T, conn *websocket.Conn) server.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env server.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readMessage(t *testing.T, conn *websocket.Conn) server.MessagePayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, server.EventMessage, env.Event)
	var payload server.MessagePayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func readError(t *testing.T, conn *websocket.Conn) server.ErrorPayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, server.EventError, env.Event)
	var payload server.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

// expectNoMessage fails if anything arrives within wait. The connection
// cannot be read from afterwards.
func expectNoMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}
