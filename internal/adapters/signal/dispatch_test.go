package signal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/GroupCall/internal/domain"
)

// stubService records calls and plays back canned results so the dispatcher
// can be exercised without a live orchestrator.
type stubService struct {
	rooms    []*domain.Room
	roomsErr error

	createdRoom *domain.Room
	createErr   error

	releaseErr error
	releasedID string

	answer  string
	joinErr error
	joined  struct {
		connID, name, token, offer string
	}

	leaveErr           error
	leftConnID, leftID string

	candErr error
	cands   []webrtc.ICECandidateInit
}

func (s *stubService) Rooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms, s.roomsErr
}

func (s *stubService) CreateRoom(ctx context.Context, creatorID string) (*domain.Room, error) {
	return s.createdRoom, s.createErr
}

func (s *stubService) ReleaseRoom(ctx context.Context, roomID string) error {
	s.releasedID = roomID
	return s.releaseErr
}

func (s *stubService) Join(ctx context.Context, connID, name, token, sdpOffer string) (string, error) {
	s.joined.connID = connID
	s.joined.name = name
	s.joined.token = token
	s.joined.offer = sdpOffer
	return s.answer, s.joinErr
}

func (s *stubService) Leave(ctx context.Context, connID, roomIDHint string) error {
	s.leftConnID = connID
	s.leftID = roomIDHint
	return s.leaveErr
}

func (s *stubService) AddIceCandidate(ctx context.Context, connID string, cand webrtc.ICECandidateInit) error {
	s.cands = append(s.cands, cand)
	return s.candErr
}

func newTestConn() *WsSignalConn {
	return &WsSignalConn{send: make(chan []byte, 32)}
}

// recv pops the next outbound frame and decodes it.
func recv(t *testing.T, c *WsSignalConn) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	default:
		t.Fatal("no outbound message")
		return nil
	}
}

func newTestController(svc Service) *Controller {
	return NewController(svc, NewHub(nil, ""))
}

func TestDispatchUnknownTag(t *testing.T) {
	ctl := newTestController(&stubService{})
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"bogus"}`))

	msg := recv(t, conn)
	assert.Equal(t, "error", msg["id"])
	assert.Equal(t, "Invalid message: bogus. ", msg["message"])
}

func TestDispatchMalformedJSON(t *testing.T) {
	ctl := newTestController(&stubService{})
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{not json`))

	msg := recv(t, conn)
	assert.Equal(t, "error", msg["id"])
	assert.Equal(t, "malformed message", msg["message"])
}

func TestDispatchPing(t *testing.T) {
	ctl := newTestController(&stubService{})
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"ping"}`))

	assert.Equal(t, "pong", recv(t, conn)["id"])
}

func TestDispatchGetRooms(t *testing.T) {
	svc := &stubService{rooms: []*domain.Room{{ID: "room-a", Seats: 2}}}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"getRooms"}`))

	msg := recv(t, conn)
	assert.Equal(t, "getRoomsResponse", msg["id"])
	assert.Equal(t, "success", msg["response"])
	rooms, ok := msg["rooms"].([]any)
	require.True(t, ok)
	require.Len(t, rooms, 1)
	assert.Equal(t, "room-a", rooms[0].(map[string]any)["id"])
}

func TestDispatchCreateRoom(t *testing.T) {
	svc := &stubService{createdRoom: &domain.Room{ID: "room-b", MasterID: "conn-1", Seats: 3}}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"createRoom"}`))

	msg := recv(t, conn)
	assert.Equal(t, "createRoomResponse", msg["id"])
	assert.Equal(t, "success", msg["response"])
	room, ok := msg["room"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "room-b", room["id"])
}

func TestDispatchCreateRoomFailure(t *testing.T) {
	svc := &stubService{createErr: domain.ErrUpstream}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"createRoom"}`))

	msg := recv(t, conn)
	assert.Equal(t, "createRoomResponse", msg["id"])
	assert.Equal(t, "fail", msg["response"])
	assert.NotEmpty(t, msg["error"])
}

func TestDispatchReleaseRoom(t *testing.T) {
	svc := &stubService{}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"releaseRoom","roomId":"room-c"}`))

	msg := recv(t, conn)
	assert.Equal(t, "releaseRoomResponse", msg["id"])
	assert.Equal(t, "success", msg["response"])
	assert.Equal(t, "room-c", svc.releasedID)
}

func TestDispatchJoinRoom(t *testing.T) {
	svc := &stubService{answer: "v=0 answer"}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn,
		[]byte(`{"id":"joinRoom","name":"alice","token":"tok-1","sdpOffer":"v=0 offer"}`))

	msg := recv(t, conn)
	assert.Equal(t, "joinRoomResponse", msg["id"])
	assert.Equal(t, "success", msg["response"])
	assert.Equal(t, "v=0 answer", msg["sdpAnswer"])

	assert.Equal(t, "conn-1", svc.joined.connID)
	assert.Equal(t, "alice", svc.joined.name)
	assert.Equal(t, "tok-1", svc.joined.token)
	assert.Equal(t, "v=0 offer", svc.joined.offer)
}

func TestDispatchJoinRoomFailure(t *testing.T) {
	svc := &stubService{joinErr: domain.ErrInvalidToken}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn,
		[]byte(`{"id":"joinRoom","name":"alice","token":"bad","sdpOffer":"v=0"}`))

	msg := recv(t, conn)
	assert.Equal(t, "joinRoomResponse", msg["id"])
	assert.Equal(t, "fail", msg["response"])
}

func TestDispatchLeaveRoom(t *testing.T) {
	svc := &stubService{}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"leaveRoom","roomId":"room-d"}`))

	msg := recv(t, conn)
	assert.Equal(t, "leaveRoomResponse", msg["id"])
	assert.Equal(t, "success", msg["response"])
	assert.Equal(t, "conn-1", svc.leftConnID)
	assert.Equal(t, "room-d", svc.leftID)
}

func TestDispatchCandidateForwardsAndStaysQuiet(t *testing.T) {
	svc := &stubService{}
	ctl := newTestController(svc)
	conn := newTestConn()

	ctl.handleMessage(context.Background(), "conn-1", conn,
		[]byte(`{"id":"onIceCandidate","candidate":{"candidate":"candidate:1 1 udp","sdpMid":"0","sdpMLineIndex":0}}`))

	require.Len(t, svc.cands, 1)
	assert.Equal(t, "candidate:1 1 udp", svc.cands[0].Candidate)
	require.NotNil(t, svc.cands[0].SDPMid)
	assert.Equal(t, "0", *svc.cands[0].SDPMid)

	select {
	case data := <-conn.send:
		t.Fatalf("unexpected reply to candidate: %s", data)
	default:
	}
}

func TestDispatchRateLimit(t *testing.T) {
	ctl := newTestController(&stubService{})
	ctl.limiter = NewRateLimiter(2, rateWindow)
	conn := newTestConn()

	for range 3 {
		ctl.handleMessage(context.Background(), "conn-1", conn, []byte(`{"id":"ping"}`))
	}

	assert.Equal(t, "pong", recv(t, conn)["id"])
	assert.Equal(t, "pong", recv(t, conn)["id"])
	msg := recv(t, conn)
	assert.Equal(t, "error", msg["id"])
	assert.Equal(t, "too many messages", msg["message"])
}

func TestTrySendBackpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan []byte, 1)}
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)
}
