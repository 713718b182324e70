package wsclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/pkg/types"
)

// Client manages a single WebSocket connection to the relayer, used by the
// maker and taker command-line tools. It reconnects with backoff and
// resubscribes to the auctions it was watching.
type Client struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       Config
	messageChan  chan *types.Envelope
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	subscribed   map[string]bool // auction ids to resubscribe after reconnect
	connected    atomic.Bool
}

// Config holds client configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// New creates a new relayer client.
func New(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Client{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.Envelope, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
	}
}

// Start connects to the relayer and launches the read and reconnect loops.
func (c *Client) Start() error {
	c.logger.Info("relayer-client-starting", zap.String("url", c.url))

	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.connected.Store(true)
	ConnectedGauge.Set(1)

	c.logger.Info("relayer-connected")

	return nil
}

// Send writes one protocol envelope to the relayer.
func (c *Client) Send(msgType string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !c.connected.Load() {
		return fmt.Errorf("not connected")
	}

	err := conn.WriteJSON(types.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}

	MessagesSentTotal.WithLabelValues(msgType).Inc()
	return nil
}

// StartAuction broadcasts a trade request to open an auction.
func (c *Client) StartAuction(p types.StartPayload) error {
	return c.Send(types.MsgAuctionStart, p)
}

// SubmitBid submits a bid into an open auction.
func (c *Client) SubmitBid(p types.BidPayload) error {
	return c.Send(types.MsgBidSubmit, p)
}

// Subscribe watches an auction's bid feed. The subscription survives
// reconnects.
func (c *Client) Subscribe(auctionID string) error {
	err := c.Send(types.MsgSubscribe, types.SubscribePayload{AuctionID: auctionID})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.subscribed[auctionID] = true
	c.mu.Unlock()

	return nil
}

// Unsubscribe stops watching an auction's bid feed.
func (c *Client) Unsubscribe(auctionID string) error {
	c.mu.Lock()
	delete(c.subscribed, auctionID)
	c.mu.Unlock()

	return c.Send(types.MsgUnsubscribe, types.SubscribePayload{AuctionID: auctionID})
}

// Cancel withdraws an auction this client started.
func (c *Client) Cancel(auctionID string) error {
	return c.Send(types.MsgCancel, types.SubscribePayload{AuctionID: auctionID})
}

// readLoop reads envelopes from the relayer until the connection drops.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("read-error", zap.Error(err))
			c.connected.Store(false)
			ConnectedGauge.Set(0)
			return
		}

		var env types.Envelope
		err = json.Unmarshal(message, &env)
		if err != nil {
			c.logger.Debug("unparseable-message",
				zap.Error(err),
				zap.Int("bytes", len(message)))
			continue
		}

		MessagesReceivedTotal.WithLabelValues(env.Type).Inc()

		select {
		case c.messageChan <- &env:
		default:
			c.logger.Warn("message-channel-full", zap.String("type", env.Type))
		}
	}
}

// pingLoop keeps the connection alive with application-level pings.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			if err := c.Send(types.MsgPing, nil); err != nil {
				c.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop re-dials after a drop and restores subscriptions.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("connection-lost-initiating-reconnect")

		err := c.reconnectMgr.Reconnect(c.ctx, c.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			c.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		if err := c.resubscribeAll(); err != nil {
			c.logger.Error("resubscribe-failed", zap.Error(err))
			c.connected.Store(false)
			continue
		}

		c.logger.Info("reconnection-complete-restarting-read-loop")

		c.wg.Add(1)
		go c.readLoop()
	}
}

// resubscribeAll re-registers every watched auction after a reconnect.
func (c *Client) resubscribeAll() error {
	c.mu.RLock()
	auctionIDs := make([]string, 0, len(c.subscribed))
	for id := range c.subscribed {
		auctionIDs = append(auctionIDs, id)
	}
	c.mu.RUnlock()

	for _, id := range auctionIDs {
		err := c.Send(types.MsgSubscribe, types.SubscribePayload{AuctionID: id})
		if err != nil {
			return fmt.Errorf("resubscribe %s: %w", id, err)
		}
	}

	if len(auctionIDs) > 0 {
		c.logger.Info("resubscribed-to-auctions", zap.Int("count", len(auctionIDs)))
	}

	return nil
}

// Messages returns the channel of inbound envelopes.
func (c *Client) Messages() <-chan *types.Envelope {
	return c.messageChan
}

// Close gracefully closes the client.
func (c *Client) Close() error {
	c.logger.Info("closing-relayer-client")

	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()

	close(c.messageChan)
	ConnectedGauge.Set(0)

	c.logger.Info("relayer-client-closed")

	return nil
}
