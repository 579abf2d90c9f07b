package signal

func (ctl *Controller) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, map[string]any{"id": "pong"})
}
