package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/registry"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub(chat.NewRoom(registry.New()), zaptest.NewLogger(t))
	ts := httptest.NewServer(SetupRoutes(hub, Routes{}))

	SetConfig(&Config{AllowedOrigins: []string{ts.URL}})
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
		ts.Close()
		SetConfig(nil)
	})
	return hub, ts.URL
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", baseURL)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/ws", header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}

func TestNewHubNilLogger(t *testing.T) {
	room := chat.NewRoom(registry.New())
	hub := NewHub(room, nil)

	assert.Same(t, room, hub.Room())
	assert.Zero(t, hub.Count())
	assert.NoError(t, hub.Shutdown(time.Second))
}

func TestHubServeJoinsRoom(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)

	env := readEnvelope(t, conn)
	require.Equal(t, protocol.UsernameChange, env.Type)
	assert.Equal(t, "user #1", *env.Username)

	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, 1, hub.Room().Registry().Len())
}

func TestHubLeaveOnDisconnect(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	readEnvelope(t, conn)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.Count() == 0 && hub.Room().Registry().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubWritesOneEnvelopePerFrame(t *testing.T) {
	_, url := newTestHub(t)
	conn := dial(t, url)

	// The join sequence is three envelopes, queued back to back.
	for _, want := range []protocol.MessageType{protocol.UsernameChange, protocol.UserList, protocol.System} {
		assert.Equal(t, want, readEnvelope(t, conn).Type)
	}
}

func TestHubShutdownRefusesNewClients(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	readEnvelope(t, conn)

	require.NoError(t, hub.Shutdown(time.Second))
	assert.Zero(t, hub.Count())

	late := dial(t, url)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := late.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.Room().Registry().Len())
}
