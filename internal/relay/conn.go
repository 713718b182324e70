package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parlaymkt/auction-relayer/pkg/types"
)

// conn is one client connection: a read pump that dispatches protocol
// messages and a write pump that drains the send buffer and keeps the
// transport-level ping/pong heartbeat alive.
type conn struct {
	id      string
	hub     *Hub
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	// sendMu serializes enqueue against closeSend: the hub closes the
	// send channel while broadcasts and the read pump may still be
	// writing to it.
	sendMu     sync.Mutex
	sendClosed bool
}

func newConn(id string, h *Hub, ws *websocket.Conn) *conn {
	return &conn{
		id:      id,
		hub:     h,
		ws:      ws,
		send:    make(chan []byte, h.cfg.SendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst),
	}
}

// enqueue queues an outbound message without blocking. A slow client drops
// its own messages; the broadcast to everyone else is unaffected. Messages
// for a connection already torn down are discarded.
func (c *conn) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}

	select {
	case c.send <- data:
	default:
		MessagesDroppedTotal.Inc()
		c.hub.logger.Warn("send-buffer-full-dropping-message",
			zap.String("conn-id", c.id))
	}
}

// closeSend closes the send channel exactly once and stops the write pump.
// Safe against concurrent enqueues; repeat calls are no-ops.
func (c *conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// sendError reports a rejection to this connection only. Rejections never
// close the connection.
func (c *conn) sendError(code, message string) {
	data, err := marshalEnvelope(types.MsgError, types.ErrorPayload{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.hub.logger.Error("marshal-error-payload", zap.Error(err))
		return
	}

	RejectionsTotal.WithLabelValues(code).Inc()
	c.enqueue(data)
}

// readPump reads and dispatches inbound messages until the connection drops
// or goes silent past the liveness window.
func (c *conn) readPump() {
	defer func() {
		c.hub.drop(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("read-error",
					zap.String("conn-id", c.id),
					zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError(types.CodeRateLimited, "message rate limit exceeded")
			continue
		}

		MessagesReceivedTotal.Inc()
		c.hub.dispatch(c, message)
	}
}

// writePump drains the send buffer and emits transport pings. Connections
// that miss the pong window are closed by the read deadline.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			MessagesSentTotal.Inc()

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
