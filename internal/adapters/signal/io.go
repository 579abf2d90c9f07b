package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the connection. On any exit path the connection leaves its
// room implicitly: the remote is gone and cannot be asked to clean up.
func (ctl *Controller) readPump(ctx context.Context, connID string, c *WsSignalConn, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", connID).Msg("readPump closing")
		ctl.Hub.remove(connID)
		ctl.limiter.Forget(connID)
		if err := ctl.Orch.Leave(context.WithoutCancel(ctx), connID, ""); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("conn", connID).Msg("implicit leave failed")
		}
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", connID).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", connID).Msg("readPump read error")
				return
			}
			ctl.handleMessage(ctx, connID, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, connID string, c *WsSignalConn, data []byte) {
	var env struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, map[string]any{"id": "error", "message": "malformed message"})
		return
	}

	if !ctl.limiter.Allow(connID) {
		log.Warn().Str("module", "signal").Str("conn", connID).Str("tag", env.ID).Msg("rate limited")
		ctl.sendJSON(c, map[string]any{"id": "error", "message": "too many messages"})
		return
	}

	switch env.ID {
	case "getRooms":
		ctl.handleGetRooms(ctx, c)
	case "createRoom":
		ctl.handleCreateRoom(ctx, connID, c)
	case "releaseRoom":
		ctl.handleReleaseRoom(ctx, c, data)
	case "joinRoom":
		ctl.handleJoinRoom(ctx, connID, c, data)
	case "leaveRoom":
		ctl.handleLeaveRoom(ctx, connID, c, data)
	case "onIceCandidate":
		ctl.handleCandidate(ctx, connID, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("tag", env.ID).Msg("unknown message")
		ctl.sendJSON(c, map[string]any{"id": "error", "message": "Invalid message: " + env.ID + ". "})
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// respondOK writes {"id":"<tag>Response","response":"success",...fields}.
func (ctl *Controller) respondOK(c *WsSignalConn, tag string, fields map[string]any) {
	resp := map[string]any{"id": tag + "Response", "response": "success"}
	for k, v := range fields {
		resp[k] = v
	}
	ctl.sendJSON(c, resp)
}

// respondErr writes the fail response for a tag. The connection stays open;
// one failed request never costs the client its socket.
func (ctl *Controller) respondErr(c *WsSignalConn, tag string, err error) {
	ctl.sendJSON(c, map[string]any{
		"id":       tag + "Response",
		"response": "fail",
		"error":    err.Error(),
	})
}
