// Package testhelpers provides common utilities for testing the planning-poker
// server.
//
// It starts a fully wired hub behind an httptest server, dials WebSocket
// clients with an allowed origin, and reads and writes protocol envelopes so
// that transport tests stay short.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/planning-poker/internal/poker"
	"github.com/Tyrowin/planning-poker/internal/room"
	"github.com/Tyrowin/planning-poker/internal/server"
	"github.com/Tyrowin/planning-poker/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

// Env is a running server under test.
type Env struct {
	Hub      *server.Hub
	Registry *room.Registry
	Server   *httptest.Server
}

// StartServer wires a registry, service, router and hub behind an httptest
// server and allows the server's own origin. Everything is torn down when the
// test ends.
func StartServer(t *testing.T, customize func(cfg *server.Config)) *Env {
	t.Helper()

	log := logger.NewNop()
	registry := room.NewRegistry()
	hub := server.NewHub(server.NewRouter(poker.NewService(registry, log), log), log)
	go hub.Run()

	testServer := httptest.NewServer(server.SetupRoutes(hub))

	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{testServer.URL}, cfg.AllowedOrigins...)
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)

	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
		testServer.Close()
		server.SetConfig(nil)
	})

	return &Env{Hub: hub, Registry: registry, Server: testServer}
}

// WebSocketURL returns the ws:// address of the /ws endpoint.
func (e *Env) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(e.Server.URL, "http") + "/ws"
}

// Dial opens a WebSocket connection using the server's own origin.
func (e *Env) Dial(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, err := ConnectWebSocket(e.WebSocketURL(), e.Server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// WaitForClients blocks until the hub has registered n clients.
func (e *Env) WaitForClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.Hub.ClientCount() == n
	}, readTimeout, 10*time.Millisecond)
}

// ConnectWebSocket creates a WebSocket connection to url sending the given
// Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Send writes one envelope. A nil ack sends none.
func Send(t *testing.T, conn *websocket.Conn, messageType string, ack *uint64, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(server.Envelope{Type: messageType, Ack: ack, Payload: raw}))
}

// Ack returns a pointer to n for use as an envelope ack.
func Ack(n uint64) *uint64 {
	return &n
}

// Receive reads the next frame from conn.
func Receive(t *testing.T, conn *websocket.Conn) server.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var frame server.Envelope
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// ReceiveType reads frames until one of the given type arrives.
func ReceiveType(t *testing.T, conn *websocket.Conn, messageType string) server.Envelope {
	t.Helper()

	for {
		frame := Receive(t, conn)
		if frame.Type == messageType {
			return frame
		}
	}
}

// Request sends an envelope with the given ack and returns the matching reply.
func Request(t *testing.T, conn *websocket.Conn, messageType string, ack uint64, payload any) server.Envelope {
	t.Helper()

	Send(t, conn, messageType, Ack(ack), payload)
	for {
		frame := Receive(t, conn)
		if frame.Ack != nil && *frame.Ack == ack {
			return frame
		}
	}
}

// Decode unmarshals a frame payload into T.
func Decode[T any](t *testing.T, frame server.Envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(frame.Payload, &out))
	return out
}

// ExpectClosed asserts that the server closes conn.
func ExpectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			require.False(t, isTimeout(err), "connection was not closed: %v", err)
			return
		}
	}
}

// ExpectNoMessage asserts that nothing arrives on conn within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
	require.True(t, isTimeout(err), "unexpected error: %v", err)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string, header http.Header) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}
