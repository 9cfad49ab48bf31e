package eventlistener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pubsubServer answers every subscribe request with subscription id 42 and
// then pushes one notification for it. When dropFirst is set the first
// connection is closed right after the confirmation.
type pubsubServer struct {
	t          *testing.T
	srv        *httptest.Server
	conns      atomic.Int32
	subscribes atomic.Int32
	dropFirst  bool
}

func newPubsubServer(t *testing.T, dropFirst bool) *pubsubServer {
	s := &pubsubServer{t: t, dropFirst: dropFirst}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *pubsubServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *pubsubServer) handle(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()
	n := s.conns.Add(1)

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		s.subscribes.Add(1)

		if err := c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42}); err != nil {
			return
		}
		if s.dropFirst && n == 1 {
			return
		}

		method := strings.Replace(req.Method, "Subscribe", "Notification", 1)
		_ = c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  method,
			"params": map[string]interface{}{
				"subscription": 42,
				"result":       map[string]interface{}{"context": map[string]interface{}{"slot": 9}, "value": map[string]interface{}{"lamports": 5}},
			},
		})
	}
}

func testWSConfig(url, fallback string) WSConfig {
	cfg := DefaultWSConfig(url, fallback)
	cfg.InitialReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	return cfg
}

func runClient(t *testing.T, c *WSClient) (cancel func()) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func receive(t *testing.T, ch <-chan json.RawMessage) AccountNotification {
	t.Helper()
	select {
	case raw, ok := <-ch:
		require.True(t, ok, "channel closed")
		var n AccountNotification
		require.NoError(t, json.Unmarshal(raw, &n))
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	return AccountNotification{}
}

func TestWSClient_SubscribeAndNotify(t *testing.T) {
	srv := newPubsubServer(t, false)
	client := NewWSClient(testWSConfig(srv.url(), ""), zaptest.NewLogger(t))

	ch, err := client.SubscribeAccount("wallet")
	require.NoError(t, err)
	stop := runClient(t, client)

	n := receive(t, ch)
	assert.Equal(t, uint64(9), n.Context.Slot)
	assert.Equal(t, uint64(5), n.Value.Lamports)

	stop()
	_, ok := <-ch
	assert.False(t, ok, "channels close when Run returns")

	_, err = client.SubscribeLogs("program")
	assert.ErrorIs(t, err, ErrClientStopped)
}

func TestWSClient_ResubscribesAfterReconnect(t *testing.T) {
	srv := newPubsubServer(t, true)
	client := NewWSClient(testWSConfig(srv.url(), ""), zaptest.NewLogger(t))

	ch, err := client.SubscribeAccount("wallet")
	require.NoError(t, err)
	stop := runClient(t, client)
	defer stop()

	receive(t, ch)
	assert.GreaterOrEqual(t, srv.conns.Load(), int32(2))
	assert.GreaterOrEqual(t, srv.subscribes.Load(), int32(2))
	assert.GreaterOrEqual(t, client.Reconnects(), int64(1))
}

func TestWSClient_FallbackURL(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	srv := newPubsubServer(t, false)
	client := NewWSClient(testWSConfig(deadURL, srv.url()), zaptest.NewLogger(t))

	ch, err := client.SubscribeAccount("wallet")
	require.NoError(t, err)
	stop := runClient(t, client)
	defer stop()

	receive(t, ch)
	assert.Equal(t, int32(1), srv.conns.Load())
}

func TestWSClient_SubscribeWhileConnected(t *testing.T) {
	srv := newPubsubServer(t, false)
	client := NewWSClient(testWSConfig(srv.url(), ""), zaptest.NewLogger(t))
	stop := runClient(t, client)
	defer stop()

	require.Eventually(t, func() bool { return srv.conns.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Дать serve() выставить соединение.
	time.Sleep(20 * time.Millisecond)

	ch, err := client.SubscribeLogs("program")
	require.NoError(t, err)
	receive(t, ch)
	assert.Equal(t, int32(1), srv.subscribes.Load())
}

func TestReconnectSchedule(t *testing.T) {
	bo := newReconnectBackOff(DefaultWSConfig("ws://x", ""))

	var got []time.Duration
	for i := 0; i < 9; i++ {
		got = append(got, bo.NextBackOff())
	}
	want := []time.Duration{1, 2, 4, 8, 16, 32, 60, 60, 60}
	for i := range want {
		want[i] *= time.Second
	}
	assert.Equal(t, want, got)

	bo.Reset()
	assert.Equal(t, time.Second, bo.NextBackOff())
}
