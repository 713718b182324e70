package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/internal/nonce"
	"github.com/parlaymkt/auction-relayer/internal/settlement"
	"github.com/parlaymkt/auction-relayer/internal/storage"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

// Config holds relay configuration.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBufferSize int

	// RateLimit is messages per second per connection; RateBurst the
	// allowed burst above it.
	RateLimit float64
	RateBurst int

	// AuctionTTL is the maker-side cutoff: how long a session stays open
	// before the sweep matches or expires it.
	AuctionTTL time.Duration

	// Retention keeps terminal sessions visible for audit before the
	// store evicts them.
	Retention     time.Duration
	SweepInterval time.Duration

	// MinLegs is the leg-count policy for incoming auctions. The
	// protocol itself only requires one leg.
	MinLegs int

	// AllowUnsigned admits the unsigned degraded path. Unsigned intents
	// and bids never reach settlement regardless.
	AllowUnsigned bool

	Logger *zap.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary dashboard origins.
		return true
	},
}

// Hub is the connection-oriented orchestrator: it accepts client
// connections, dispatches protocol messages to auction sessions, broadcasts
// state changes to subscribers, and runs the deadline sweep that matches or
// expires sessions.
type Hub struct {
	cfg      Config
	logger   *zap.Logger
	store    *auction.Store
	codec    *codec.Codec
	oracle   *nonce.Oracle
	preparer *settlement.Preparer
	audit    storage.Storage

	register   chan *conn
	unregister chan *conn

	mu    sync.RWMutex
	conns map[string]*conn

	ctx context.Context
	wg  sync.WaitGroup
}

// New creates a relay hub.
func New(cfg Config, store *auction.Store, cdc *codec.Codec, oracle *nonce.Oracle, preparer *settlement.Preparer, audit storage.Storage) *Hub {
	return &Hub{
		cfg:        cfg,
		logger:     cfg.Logger,
		store:      store,
		codec:      cdc,
		oracle:     oracle,
		preparer:   preparer,
		audit:      audit,
		register:   make(chan *conn),
		unregister: make(chan *conn),
		conns:      make(map[string]*conn),
	}
}

// Start launches the hub event loop and the session sweep.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx = ctx
	h.logger.Info("relay-starting",
		zap.Duration("auction-ttl", h.cfg.AuctionTTL),
		zap.Duration("sweep-interval", h.cfg.SweepInterval),
		zap.Bool("allow-unsigned", h.cfg.AllowUnsigned))

	h.wg.Add(2)
	go h.run()
	go h.sweepLoop()

	return nil
}

// run handles connection registration and teardown.
func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for id, c := range h.conns {
				c.closeSend()
				delete(h.conns, id)
			}
			h.mu.Unlock()
			h.logger.Info("relay-stopping")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.conns[c.id] = c
			total := len(h.conns)
			h.mu.Unlock()

			ConnectionsActive.Set(float64(total))
			h.logger.Info("client-connected",
				zap.String("conn-id", c.id),
				zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.conns[c.id]; ok {
				delete(h.conns, c.id)
				c.closeSend()
			}
			total := len(h.conns)
			h.mu.Unlock()

			// Dropping a connection releases its subscriptions only;
			// auction state is never touched.
			h.store.Unsubscribe(c.id)

			ConnectionsActive.Set(float64(total))
			h.logger.Info("client-disconnected",
				zap.String("conn-id", c.id),
				zap.Int("total", total))
		}
	}
}

// HandleWS upgrades an HTTP request to the relayer's persistent connection
// and registers it with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade-failed", zap.Error(err))
		return
	}

	c := newConn(uuid.NewString(), h, ws)

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		ws.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Close waits for the hub's goroutines after the context is cancelled.
func (h *Hub) Close() error {
	h.wg.Wait()
	h.logger.Info("relay-closed")
	return nil
}

// marshalEnvelope wraps a payload in the protocol envelope.
func marshalEnvelope(msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return json.Marshal(types.Envelope{Type: msgType, Payload: raw})
}

// sendTo enqueues a message for one connection id. A full send buffer drops
// the message for that subscriber only; a connection that disconnected since
// the subscriber list was read is skipped.
func (h *Hub) sendTo(connID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if c, ok := h.conns[connID]; ok {
		c.enqueue(data)
	}
}

// drop hands a connection back to the event loop for teardown. Once the hub
// has stopped, nothing drains the channel, so give up on shutdown instead of
// leaking the read pump goroutine.
func (h *Hub) drop(c *conn) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// broadcastAll fans a message out to every connection, used for the public
// auction.started feed.
func (h *Hub) broadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		c.enqueue(data)
	}
}

// broadcastBids sends the session's current bid list and state to its
// subscribers, in acceptance order.
func (h *Hub) broadcastBids(sess *auction.Session) {
	state, bids := sess.Snapshot()

	data, err := marshalEnvelope(types.MsgBids, types.BidsPayload{
		AuctionID: sess.ID,
		State:     state.String(),
		Bids:      bidViews(bids),
	})
	if err != nil {
		h.logger.Error("marshal-bids-broadcast", zap.Error(err))
		return
	}

	for _, connID := range sess.Subscribers() {
		h.sendTo(connID, data)
	}
	BroadcastsTotal.Inc()
}

func bidViews(bids []auction.TakerBid) []types.BidView {
	views := make([]types.BidView, 0, len(bids))
	for i := range bids {
		views = append(views, types.BidView{
			Taker:      bids[i].Taker.Hex(),
			Wager:      bids[i].Wager.String(),
			Deadline:   bids[i].Deadline.Unix(),
			Nonce:      bids[i].Nonce,
			ReceivedAt: bids[i].ReceivedAt.UnixMilli(),
		})
	}
	return views
}
