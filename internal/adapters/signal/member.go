package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, connID string, conn *WsSignalConn, data []byte) {
	var p struct {
		Name     string `json:"name"`
		Token    string `json:"token"`
		SDPOffer string `json:"sdpOffer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad joinRoom payload")
		ctl.respondErr(conn, "joinRoom", err)
		return
	}

	answer, err := ctl.Orch.Join(ctx, connID, p.Name, p.Token, p.SDPOffer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", connID).Msg("joinRoom")
		ctl.respondErr(conn, "joinRoom", err)
		return
	}
	ctl.respondOK(conn, "joinRoom", map[string]any{"sdpAnswer": answer})
}

func (ctl *Controller) handleLeaveRoom(ctx context.Context, connID string, conn *WsSignalConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leaveRoom payload")
		ctl.respondErr(conn, "leaveRoom", err)
		return
	}

	if err := ctl.Orch.Leave(ctx, connID, p.RoomID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", connID).Msg("leaveRoom")
		ctl.respondErr(conn, "leaveRoom", err)
		return
	}
	ctl.respondOK(conn, "leaveRoom", nil)
}
