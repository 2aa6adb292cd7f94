// Package testhelpers provides common utilities and helper functions for testing chatrelay.
//
// It builds a complete in-process stack (registry, room, hub, routes and an
// httptest server) and offers helpers for dialing the websocket endpoint and
// reading envelopes, so integration tests stay short.
package testhelpers

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/server"
)

// ReadTimeout bounds every helper read.
const ReadTimeout = 2 * time.Second

// Stack is a running relay backed by an httptest server.
type Stack struct {
	Registry *registry.Registry
	Room     *chat.Room
	Hub      *server.Hub
	Metrics  *metrics.Metrics
	Server   *httptest.Server
	WSURL    string
}

// NewStack starts a relay with metrics mounted at /metrics. The server's own
// URL is an allowed origin; customize may adjust the runtime config further.
// Everything is torn down when the test ends.
func NewStack(t *testing.T, customize func(cfg *server.Config)) *Stack {
	t.Helper()

	logger := zaptest.NewLogger(t)
	m := metrics.New()
	reg := registry.New()
	room := chat.NewRoom(reg, chat.WithLogger(logger), chat.WithMetrics(m))
	hub := server.NewHub(room, logger)

	mux := server.SetupRoutes(hub, server.Routes{
		MetricsPath:    "/metrics",
		MetricsHandler: m.Handler(),
	})
	ts := httptest.NewServer(mux)

	cfg := server.NewConfig()
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)

	t.Cleanup(func() {
		_ = hub.Shutdown(ReadTimeout)
		ts.Close()
		server.SetConfig(nil)
	})

	return &Stack{
		Registry: reg,
		Room:     room,
		Hub:      hub,
		Metrics:  m,
		Server:   ts,
		WSURL:    "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// Dial connects to the stack's websocket endpoint with its own URL as Origin.
func (s *Stack) Dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := DialOrigin(s.WSURL, s.Server.URL)
	require.NoError(t, err, "dial %s (response %v)", s.WSURL, resp)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Join dials and consumes the join sequence, returning the connection and the
// name the server assigned to it.
func (s *Stack) Join(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	conn := s.Dial(t)

	env := ReadEnvelope(t, conn)
	require.Equal(t, protocol.UsernameChange, env.Type)
	name := *env.Username

	require.Equal(t, protocol.UserList, ReadEnvelope(t, conn).Type)
	notice := ReadEnvelope(t, conn)
	require.Equal(t, protocol.System, notice.Type)
	require.Equal(t, name+" join the chat", notice.Message.Message)
	return conn, name
}

// DialOrigin dials url with the given Origin header; an empty origin sends none.
func DialOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// ReadText reads one text frame.
func ReadText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(ReadTimeout)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	return string(data)
}

// ReadEnvelope reads one frame and decodes it as an envelope.
func ReadEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	env, err := protocol.DecodeString(ReadText(t, conn))
	require.NoError(t, err)
	return env
}

// SkipFrames discards n frames.
func SkipFrames(t *testing.T, conn *websocket.Conn, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ReadText(t, conn)
	}
}

// SendEnvelope writes env as one text frame.
func SendEnvelope(t *testing.T, conn *websocket.Conn, env protocol.Envelope) {
	t.Helper()
	SendText(t, conn, env.String())
}

// SendText writes one text frame.
func SendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

// ExpectNoFrame asserts that nothing arrives within timeout. A timed out read
// leaves the connection unusable, so this must be the last read on conn.
func ExpectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %q", data)
}

// ExpectClosed reads until the connection fails, which must happen within
// ReadTimeout.
func ExpectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(ReadTimeout)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after %s", ReadTimeout)
			}
			return
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// WaitFor polls cond until it holds or ReadTimeout passes.
func WaitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, ReadTimeout, 10*time.Millisecond, msg)
}
