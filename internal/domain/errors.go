package domain

import "errors"

// Error kinds for the signaling core. Store and orchestrator wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	// ErrRoomNotFound is returned when a room id is absent from the store.
	ErrRoomNotFound = errors.New("room not found")
	// ErrMemberNotFound is returned when a connection has no seat in a room.
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidRoom is returned when a token decodes to a room that does not exist.
	ErrInvalidRoom = errors.New("invalid room")
	// ErrInvalidToken is returned when a seat token is absent or already claimed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidInput marks malformed protocol input (bad token encoding, unknown tag).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream marks a failure of the media server or the shared store,
	// as opposed to a not-found or conflict outcome.
	ErrUpstream = errors.New("upstream failure")
	// ErrNegotiation marks a failed SDP/ICE negotiation.
	ErrNegotiation = errors.New("negotiation failure")
)
