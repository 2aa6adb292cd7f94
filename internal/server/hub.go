// Package server drives connection lifecycles for the chat room via the Hub
// type: it joins upgraded connections to the room, runs their pumps and tears
// everything down on shutdown.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// ErrHubClosed is returned by Serve after Shutdown has started.
var ErrHubClosed = errors.New("hub is shut down")

// Hub tracks the live clients of a chat room so they can be closed on
// shutdown. All chat state lives in the room's registry; the hub only owns
// goroutines and sockets.
type Hub struct {
	room *chat.Room
	log  *zap.Logger

	mutex   sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a Hub serving room. A nil logger disables logging.
func NewHub(room *chat.Room, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		room:    room,
		log:     logger,
		clients: make(map[*Client]struct{}),
	}
}

// Room returns the room this hub serves.
func (h *Hub) Room() *chat.Room {
	return h.room
}

// Serve joins an upgraded connection to the room and starts its pumps. It
// returns once the pumps are running; the connection is cleaned up when the
// peer goes away.
func (h *Hub) Serve(conn *websocket.Conn, addr string) (*Client, error) {
	client := NewClient(conn, h, addr)
	session := zap.String("session", uuid.NewString())
	client.log = client.log.With(session)
	client.connLog = client.log

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		_ = conn.Close()
		return nil, ErrHubClosed
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.wg.Add(2)
	h.mutex.Unlock()

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()

	id, name := h.room.Join(client)
	client.id = id
	client.connLog = client.log.With(zap.Uint64("conn_id", uint64(id)))
	client.connLog.Info("client registered", zap.String("name", name), zap.Int("total", total))

	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	return client, nil
}

// leave runs the room's disconnect sequence for c and forgets it. Called once
// from the read pump.
func (h *Hub) leave(c *Client) {
	rep := h.room.Leave(c.id)
	if rep.Err != nil {
		c.connLog.Warn("leave for unregistered client", zap.Error(rep.Err))
	}

	h.mutex.Lock()
	delete(h.clients, c)
	total := len(h.clients)
	h.mutex.Unlock()

	c.connLog.Info("client unregistered", zap.Int("total", total))
}

// Count returns the number of clients whose pumps are running.
func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() int {
	h.mutex.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.Close()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Debug("closing client connection", zap.Error(err))
			}
		}
	}
	return len(clients)
}

// Shutdown refuses new connections, closes all clients and waits for their
// pumps to finish, or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	n := h.shutdownClients()
	h.log.Info("closed client connections", zap.Int("count", n))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
