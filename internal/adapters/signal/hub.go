package signal

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Hub tracks the live connections this process owns and delivers
// server-initiated pushes. With a redis client attached, pushes for
// connections owned by other instances travel over a shared pub/sub channel
// and whichever process owns the target delivers.
//
// Hub implements app.Notifier.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*WsSignalConn

	rdb     *redis.Client
	channel string
}

// NewHub builds a hub. rdb may be nil for a single-instance deployment; then
// pushes for unknown connections are dropped with a log line.
func NewHub(rdb *redis.Client, prefix string) *Hub {
	if prefix == "" {
		prefix = "groupcall"
	}
	return &Hub{
		conns:   make(map[string]*WsSignalConn),
		rdb:     rdb,
		channel: prefix + ":push",
	}
}

func (h *Hub) add(connID string, c *WsSignalConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = c
}

func (h *Hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

func (h *Hub) local(connID string) (*WsSignalConn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}

type pushEnvelope struct {
	ConnID  string          `json:"connId"`
	Payload json.RawMessage `json:"payload"`
}

// Push delivers payload to connID, locally when possible, otherwise through
// the shared channel.
func (h *Hub) Push(connID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("push marshal")
		return
	}
	if c, ok := h.local(connID); ok {
		if err := c.TrySend(raw); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Str("conn", connID).Msg("local push failed")
		}
		return
	}
	if h.rdb == nil {
		log.Warn().Str("module", "signal.hub").Str("conn", connID).Msg("push for unknown connection dropped")
		return
	}
	env, _ := json.Marshal(pushEnvelope{ConnID: connID, Payload: raw})
	if err := h.rdb.Publish(context.Background(), h.channel, env).Err(); err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Str("conn", connID).Msg("push publish failed")
	}
}

// Run consumes the shared push channel until ctx ends. Only meaningful with a
// redis client; each process delivers to the subset of connections it owns.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	sub := h.rdb.Subscribe(ctx, h.channel)
	defer sub.Close()
	log.Info().Str("module", "signal.hub").Str("channel", h.channel).Msg("push bridge running")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env pushEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Str("module", "signal.hub").Msg("bad push envelope")
				continue
			}
			if c, ok := h.local(env.ConnID); ok {
				if err := c.TrySend(env.Payload); err != nil {
					log.Warn().Err(err).Str("module", "signal.hub").Str("conn", env.ConnID).Msg("bridged push failed")
				}
			}
		}
	}
}

// NotifyIceCandidate forwards a locally gathered candidate to the client.
func (h *Hub) NotifyIceCandidate(connID string, ci webrtc.ICECandidateInit) {
	h.Push(connID, map[string]any{
		"id":        "iceCandidate",
		"candidate": fromCandidateInit(ci),
	})
}

// NotifyStopCommunication tells a client its room is gone. No reply expected.
func (h *Hub) NotifyStopCommunication(connID string) {
	h.Push(connID, map[string]any{"id": "stopCommunication"})
}
