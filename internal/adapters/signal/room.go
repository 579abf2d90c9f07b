package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleGetRooms(ctx context.Context, conn *WsSignalConn) {
	rooms, err := ctl.Orch.Rooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("getRooms")
		ctl.respondErr(conn, "getRooms", err)
		return
	}
	ctl.respondOK(conn, "getRooms", map[string]any{"rooms": rooms})
}

func (ctl *Controller) handleCreateRoom(ctx context.Context, connID string, conn *WsSignalConn) {
	room, err := ctl.Orch.CreateRoom(ctx, connID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", connID).Msg("createRoom")
		ctl.respondErr(conn, "createRoom", err)
		return
	}
	ctl.respondOK(conn, "createRoom", map[string]any{"room": room})
}

func (ctl *Controller) handleReleaseRoom(ctx context.Context, conn *WsSignalConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad releaseRoom payload")
		ctl.respondErr(conn, "releaseRoom", err)
		return
	}
	if err := ctl.Orch.ReleaseRoom(ctx, p.RoomID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", p.RoomID).Msg("releaseRoom")
		ctl.respondErr(conn, "releaseRoom", err)
		return
	}
	ctl.respondOK(conn, "releaseRoom", nil)
}
