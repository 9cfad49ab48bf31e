// internal/eventlistener/wsclient.go
package eventlistener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSConfig configures the pubsub connection.
type WSConfig struct {
	URL         string
	FallbackURL string // dialed when URL fails

	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	PingInterval          time.Duration
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	NotificationBuffer    int
}

// DefaultWSConfig returns the reconnect schedule 1s, 2s, 4s ... capped at 60s.
func DefaultWSConfig(url, fallback string) WSConfig {
	return WSConfig{
		URL:                   url,
		FallbackURL:           fallback,
		InitialReconnectDelay: time.Second,
		MaxReconnectDelay:     60 * time.Second,
		PingInterval:          20 * time.Second,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          10 * time.Second,
		NotificationBuffer:    1024,
	}
}

// ErrClientStopped is returned by Subscribe after Run has returned.
var ErrClientStopped = errors.New("websocket client stopped")

type subscription struct {
	key    int
	method string
	params []interface{}
	ch     chan json.RawMessage
}

// WSClient is a Solana pubsub client that survives disconnects: Run keeps
// a connection up and re-issues every registered subscription after each
// reconnect. Notifications are delivered as raw result payloads.
type WSClient struct {
	cfg    WSConfig
	logger *zap.Logger
	dialer *websocket.Dialer

	requestID atomic.Uint64
	writeMu   sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[int]*subscription
	pending map[uint64]int // request id -> subscription key
	active  map[int64]int  // server subscription id -> subscription key
	nextKey int
	stopped bool

	reconnects atomic.Int64
}

// NewWSClient creates a client. No connection is made until Run.
func NewWSClient(cfg WSConfig, logger *zap.Logger) *WSClient {
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = 1024
	}
	return &WSClient{
		cfg:     cfg,
		logger:  logger.Named("ws-client"),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		subs:    make(map[int]*subscription),
		pending: make(map[uint64]int),
		active:  make(map[int64]int),
	}
}

// SubscribeLogs subscribes to transaction logs mentioning address.
func (c *WSClient) SubscribeLogs(address string) (<-chan json.RawMessage, error) {
	return c.subscribe("logsSubscribe",
		map[string]interface{}{"mentions": []string{address}},
		map[string]string{"commitment": "confirmed"},
	)
}

// SubscribeAccount subscribes to changes of account.
func (c *WSClient) SubscribeAccount(account string) (<-chan json.RawMessage, error) {
	return c.subscribe("accountSubscribe",
		account,
		map[string]string{"commitment": "confirmed", "encoding": "base64"},
	)
}

func (c *WSClient) subscribe(method string, params ...interface{}) (<-chan json.RawMessage, error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, ErrClientStopped
	}
	c.nextKey++
	sub := &subscription{
		key:    c.nextKey,
		method: method,
		params: params,
		ch:     make(chan json.RawMessage, c.cfg.NotificationBuffer),
	}
	c.subs[sub.key] = sub
	conn := c.conn
	c.mu.Unlock()

	// Без соединения запрос уйдёт при следующем подключении.
	if conn != nil {
		if err := c.sendSubscribe(conn, sub); err != nil {
			c.logger.Warn("Subscribe request failed, will retry after reconnect",
				zap.String("method", method), zap.Error(err))
		}
	}
	return sub.ch, nil
}

// Run maintains the connection until ctx is cancelled. Subscription
// channels are closed when Run returns.
func (c *WSClient) Run(ctx context.Context) error {
	defer c.stop()

	bo := newReconnectBackOff(c.cfg)

	for {
		conn, url, err := c.dial(ctx)
		if err == nil {
			bo.Reset()
			c.logger.Info("WebSocket connected", zap.String("url", url))
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := bo.NextBackOff()
		c.reconnects.Add(1)
		wsReconnects.Inc()
		c.logger.Warn("WebSocket disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// newReconnectBackOff doubles the delay from InitialReconnectDelay up to
// MaxReconnectDelay, without jitter.
func newReconnectBackOff(cfg WSConfig) *backoff.ExponentialBackOff {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialReconnectDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.MaxReconnectDelay,
	}
	bo.Reset()
	return bo
}

// Reconnects returns the number of reconnect attempts so far.
func (c *WSClient) Reconnects() int64 {
	return c.reconnects.Load()
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, string, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err == nil {
		return conn, c.cfg.URL, nil
	}
	if c.cfg.FallbackURL == "" || ctx.Err() != nil {
		return nil, "", fmt.Errorf("websocket dial: %w", err)
	}

	c.logger.Warn("Primary WebSocket dial failed, trying fallback", zap.Error(err))
	conn, _, ferr := c.dialer.DialContext(ctx, c.cfg.FallbackURL, nil)
	if ferr != nil {
		return nil, "", fmt.Errorf("websocket dial: %w", errors.Join(err, ferr))
	}
	return conn, c.cfg.FallbackURL, nil
}

// serve runs one connection: resubscribe, ping, read until failure.
func (c *WSClient) serve(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.conn = conn
	c.pending = make(map[uint64]int)
	c.active = make(map[int64]int)
	subs := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for _, s := range subs {
		if err := c.sendSubscribe(conn, s); err != nil {
			return err
		}
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	go func() {
		<-connCtx.Done()
		// Разблокирует ReadMessage.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go c.pingLoop(connCtx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(connCtx, message)
	}
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
			}
		}
	}
}

func (c *WSClient) sendSubscribe(conn *websocket.Conn, sub *subscription) error {
	id := c.requestID.Add(1)

	c.mu.Lock()
	c.pending[id] = sub.key
	c.mu.Unlock()

	req := wsRequest{JSONRPC: "2.0", ID: id, Method: sub.method, Params: sub.params}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("write %s: %w", sub.method, err)
	}
	return nil
}

func (c *WSClient) handleMessage(ctx context.Context, message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("Malformed WebSocket message", zap.Error(err))
		return
	}

	if msg.ID != nil {
		c.handleResponse(&msg)
		return
	}

	if msg.Params == nil || !strings.HasSuffix(msg.Method, "Notification") {
		return
	}

	c.mu.Lock()
	key, ok := c.active[msg.Params.Subscription]
	sub := c.subs[key]
	c.mu.Unlock()
	if !ok || sub == nil {
		return
	}

	select {
	case sub.ch <- msg.Params.Result:
	case <-ctx.Done():
	}
}

func (c *WSClient) handleResponse(msg *wsMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.pending[*msg.ID]
	if !ok {
		return
	}
	delete(c.pending, *msg.ID)

	if msg.Error != nil {
		c.logger.Error("Subscription rejected",
			zap.Int("code", msg.Error.Code),
			zap.String("message", msg.Error.Message))
		return
	}

	var serverID int64
	if err := json.Unmarshal(msg.Result, &serverID); err != nil {
		c.logger.Error("Unexpected subscribe result", zap.ByteString("result", msg.Result))
		return
	}
	c.active[serverID] = key
}

func (c *WSClient) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	for key, s := range c.subs {
		close(s.ch)
		delete(c.subs, key)
	}
}
