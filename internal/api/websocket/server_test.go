package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/publisher"
)

// chanFollower emits whatever is sent on entries.
type chanFollower struct {
	entries chan publisher.Entry
}

func (f *chanFollower) Follow(ctx context.Context, fn func(publisher.Entry) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-f.entries:
			if err := fn(e); err != nil {
				return err
			}
		}
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelaysEntriesToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	follower := &chanFollower{entries: make(chan publisher.Entry)}
	ws := NewServer(follower, logging.NewNop())
	go func() { _ = ws.Run(ctx) }()

	srv := httptest.NewServer(ws)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return ws.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	payload := `{"event":"sync.completed","result":{"job":"players","status":"succeeded"}}`
	follower.entries <- publisher.Entry{ID: "1-0", Data: ""}
	follower.entries <- publisher.Entry{ID: "2-0", Data: payload}

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		kind, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.JSONEq(t, payload, string(msg))
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := NewServer(nil, logging.NewNop())
	go func() { _ = ws.Run(ctx) }()

	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return ws.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ws := NewServer(nil, logging.NewNop())
	done := make(chan struct{})
	go func() {
		_ = ws.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return ws.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return ws.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastAfterStopIsNoop(t *testing.T) {
	h := NewHub()
	done := make(chan struct{})
	close(done)
	h.Run(done)

	h.Broadcast([]byte("late"))
	assert.False(t, h.add(&Client{hub: h, send: make(chan []byte, 1)}))
	assert.Equal(t, 0, h.ClientCount())
}
