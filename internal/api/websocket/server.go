package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/publisher"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Follower delivers sync events as they are published.
type Follower interface {
	Follow(ctx context.Context, fn func(publisher.Entry) error) error
}

// Server relays sync.completed events to websocket subscribers.
type Server struct {
	hub      *Hub
	follower Follower
	logger   *logging.Logger
}

// NewServer creates a relay server. follower may be nil, in which case
// clients can connect but receive nothing.
func NewServer(follower Follower, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		hub:      NewHub(),
		follower: follower,
		logger:   logger.Named("ws"),
	}
}

// Run starts the hub and relays followed entries until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx.Done())

	if s.follower == nil {
		<-ctx.Done()
		return nil
	}

	s.logger.Info("relaying sync events")
	return s.follower.Follow(ctx, func(e publisher.Entry) error {
		if e.Data == "" {
			return nil
		}
		s.hub.Broadcast([]byte(e.Data))
		return nil
	})
}

// ServeHTTP upgrades the connection and subscribes it to the feed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected subscribers.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}
