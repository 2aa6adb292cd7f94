package integration

import (
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/test/testhelpers"
)

// TestNoClientsShutdown verifies that an idle hub shuts down immediately.
func TestNoClientsShutdown(t *testing.T) {
	hub := server.NewHub(chat.NewRoom(registry.New()), zaptest.NewLogger(t))
	assert.NoError(t, hub.Shutdown(time.Second))
}

// TestGracefulShutdownWithClients verifies that active client connections
// are closed and the room is emptied during shutdown.
func TestGracefulShutdownWithClients(t *testing.T) {
	stack := testhelpers.NewStack(t, nil)

	const numClients = 5
	clients := make([]*websocket.Conn, numClients)
	for i := range clients {
		clients[i], _ = stack.Join(t)
	}
	require.Equal(t, numClients, stack.Hub.Count())

	require.NoError(t, stack.Hub.Shutdown(testhelpers.ReadTimeout))

	for _, conn := range clients {
		testhelpers.ExpectClosed(t, conn)
	}
	assert.Equal(t, 0, stack.Hub.Count())
	assert.Equal(t, 0, stack.Registry.Len())
}

// TestConnectionsRefusedAfterShutdown verifies that upgrades arriving after
// shutdown are closed without joining the room.
func TestConnectionsRefusedAfterShutdown(t *testing.T) {
	stack := testhelpers.NewStack(t, nil)
	require.NoError(t, stack.Hub.Shutdown(time.Second))

	conn, _, err := testhelpers.DialOrigin(stack.WSURL, stack.Server.URL)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	testhelpers.ExpectClosed(t, conn)
	assert.Equal(t, 0, stack.Registry.Len())
}

// TestShutdownServerStopsListener verifies the HTTP side of shutdown.
func TestShutdownServerStopsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	logger := zaptest.NewLogger(t)
	srv := server.CreateServer(addr, testhelpers.NewStack(t, nil).Server.Config.Handler)

	errc := make(chan error, 1)
	go func() { errc <- server.StartServer(srv, logger) }()

	testhelpers.WaitFor(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, "server did not start listening")

	require.NoError(t, server.ShutdownServer(srv, time.Second, logger))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(testhelpers.ReadTimeout):
		t.Fatal("StartServer did not return after shutdown")
	}
}
