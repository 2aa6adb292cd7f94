// Package server manages individual WebSocket clients: the read pump feeds
// text frames into the chat room, the write pump drains the outbound queue
// that the room fills through Client.Send.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/chatrelay/internal/registry"
)

const (
	// writeWait is the deadline for one frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the peer may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrClientClosed is returned by Send once the client is shutting down.
	ErrClientClosed = errors.New("client closed")

	// ErrSendTimeout is returned by Send when the outbound queue stayed full
	// for the whole send timeout.
	ErrSendTimeout = errors.New("send timed out")
)

// Client is one websocket connection. It is the registry.Sink of its
// connection: the registry entry created on join is its only owner.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	addr string
	id   registry.ID

	// log is fixed before the pumps start; connLog adds the connection ID
	// and is only used from the read pump.
	log     *zap.Logger
	connLog *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	maxMessageSize int64
	sendTimeout    time.Duration
	limiter        *rate.Limiter
	rateLimit      RateLimitConfig
}

var _ registry.Sink = (*Client)(nil)

// NewClient creates a Client for conn using the current runtime config. conn
// may be nil in tests that only exercise the outbound queue.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	perSecond := float64(cfg.RateLimit.Burst) / cfg.RateLimit.RefillInterval.Seconds()

	logger := zap.NewNop()
	if hub != nil {
		logger = hub.log
	}

	return &Client{
		conn:           conn,
		hub:            hub,
		addr:           addr,
		log:            logger.With(zap.String("remote", addr)),
		connLog:        logger.With(zap.String("remote", addr)),
		send:           make(chan []byte, cfg.SendBuffer),
		done:           make(chan struct{}),
		maxMessageSize: cfg.MaxMessageSize,
		sendTimeout:    cfg.SendTimeout,
		limiter:        rate.NewLimiter(rate.Limit(perSecond), cfg.RateLimit.Burst),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the registry ID assigned on join, or 0 before that.
func (c *Client) ID() registry.ID {
	return c.id
}

// Send queues text for the write pump. It blocks for at most the configured
// send timeout, because the room calls it while holding the registry lock.
func (c *Client) Send(text string) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	timer := time.NewTimer(c.sendTimeout)
	defer timer.Stop()

	select {
	case c.send <- []byte(text):
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Close stops the client: pending and future sends fail with ErrClientClosed
// and the write pump sends a close frame and exits. It is safe to call more
// than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.connLog.Debug("setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.connLog.Debug("setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.connLog.Info("frame exceeded maximum size", zap.Int64("max_bytes", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.connLog.Info("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.connLog.Info("client connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.connLog.Warn("unexpected websocket close", zap.Error(err))
	default:
		c.connLog.Warn("websocket read error", zap.Error(err))
	}
}

// allowFrame applies the per-connection rate limit.
func (c *Client) allowFrame() bool {
	if c.limiter.Allow() {
		return true
	}
	c.connLog.Info("rate limit exceeded, discarding frame",
		zap.Int("burst", c.rateLimit.Burst),
		zap.Duration("refill_interval", c.rateLimit.RefillInterval),
	)
	return false
}

// processFrame hands one text frame to the room and logs what happened to it.
func (c *Client) processFrame(raw []byte) {
	rep := c.hub.room.HandleFrame(c.id, string(raw))
	if rep.ParseErr != nil {
		c.connLog.Debug("relayed unstructured frame", zap.NamedError("parse_error", rep.ParseErr))
	}
	if err := rep.Delivery.Err(); err != nil {
		c.connLog.Debug("frame not delivered to every peer",
			zap.String("event", rep.Event.String()),
			zap.Int("delivered", rep.Delivery.Delivered()),
			zap.Error(err),
		)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.connLog.Debug("closing connection in readPump", zap.Error(err))
		}
	}()

	c.setupReadConnection()

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		// Binary frames are not part of the protocol.
		if msgType != websocket.TextMessage {
			continue
		}

		if !c.allowFrame() {
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("closing connection in writePump", zap.Error(err))
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeFrame(websocket.TextMessage, message) {
				return
			}
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.writeFrame(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// writeFrame writes one frame and reports whether the pump should continue.
// Every queued message is its own frame: peers parse one envelope per frame.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("setting write deadline", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("writing frame", zap.Int("type", messageType), zap.Error(err))
		}
		return false
	}
	return true
}
