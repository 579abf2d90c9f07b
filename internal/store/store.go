// Package store persists room, member and seat-token state. Two backends
// satisfy the same contract: Memory for a single instance, Redis for a fleet
// of instances sharing state. Call sites never branch on the backend.
package store

import (
	"context"

	"github.com/dkeye/GroupCall/internal/domain"
)

// SessionStore is the single source of truth for room state. Implementations
// serialize conflicting writes themselves: exactly one winner among concurrent
// claimants of the same seat token, and room-id minting is atomic per id.
//
// Any operation may involve network I/O; unavailability of the backing store
// surfaces as a domain.ErrUpstream-wrapped error, never as not-found.
type SessionStore interface {
	// RoomKeys enumerates the ids of all live rooms. The set may change while
	// the caller iterates; a returned id is not a liveness guarantee.
	RoomKeys(ctx context.Context) ([]string, error)

	// Room returns a fully hydrated room (tokens and members included),
	// or domain.ErrRoomNotFound.
	Room(ctx context.Context, id string) (*domain.Room, error)

	// CreateRoom mints a room with a fresh collision-checked id, the given
	// media handle ids and one unclaimed token per seat. Membership is empty.
	CreateRoom(ctx context.Context, masterID, pipelineID, mixerID string, seats int) (*domain.Room, error)

	// ReleaseRoom removes room, tokens and members as one unit and returns
	// the state as it was immediately before removal, or domain.ErrRoomNotFound.
	ReleaseRoom(ctx context.Context, id string) (*domain.Room, error)

	// JoinRoom claims the token for connID and records the member.
	// domain.ErrInvalidRoom when the token's room does not exist,
	// domain.ErrInvalidToken when the token is absent or already claimed.
	JoinRoom(ctx context.Context, token, connID, name, endpointID, hubPortID string) (*domain.Member, error)

	// LeaveRoom removes the member and deletes its token entry; a vacated
	// seat is not rejoinable with the same token. Idempotent: a second call
	// returns domain.ErrMemberNotFound.
	LeaveRoom(ctx context.Context, roomID, connID string) (*domain.Member, error)
}
