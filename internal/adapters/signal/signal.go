// Package signal is the websocket dispatcher: it turns tagged protocol
// messages into orchestrator calls and writes tagged responses back.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Service is the orchestrator surface the dispatcher drives.
type Service interface {
	Rooms(ctx context.Context) ([]*domain.Room, error)
	CreateRoom(ctx context.Context, creatorID string) (*domain.Room, error)
	ReleaseRoom(ctx context.Context, roomID string) error
	Join(ctx context.Context, connID, name, token, sdpOffer string) (string, error)
	Leave(ctx context.Context, connID, roomIDHint string) error
	AddIceCandidate(ctx context.Context, connID string, cand webrtc.ICECandidateInit) error
}

type Controller struct {
	Orch    Service
	Hub     *Hub
	limiter *RateLimiter
}

func NewController(orch Service, hub *Hub) *Controller {
	return &Controller{
		Orch:    orch,
		Hub:     hub,
		limiter: NewRateLimiter(rateLimit, rateWindow),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until it dies.
// Every connection gets a fresh id; all room state it acquires is keyed on it.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	connID := uuid.NewString()
	log.Info().Str("module", "signal").Str("conn", connID).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
	ctl.Hub.add(connID, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, connID, conn, cancel)
}
