package store

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/domain"
)

// Memory is the single-process SessionStore. One lock over the whole room set
// is enough here: operations are map work, contention is per-message.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*domain.Room)}
}

func (s *Memory) RoomKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		keys = append(keys, id)
	}
	return keys, nil
}

func (s *Memory) Room(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	return cloneRoom(room), nil
}

func (s *Memory) CreateRoom(ctx context.Context, masterID, pipelineID, mixerID string, seats int) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		var err error
		if id, err = domain.NewRoomID(); err != nil {
			return nil, err
		}
		if _, taken := s.rooms[id]; !taken {
			break
		}
	}

	room := &domain.Room{
		ID:         id,
		MasterID:   masterID,
		PipelineID: pipelineID,
		MixerID:    mixerID,
		Seats:      seats,
		Tokens:     domain.MintTokens(id, seats),
		Members:    make(map[string]domain.Member),
	}
	s.rooms[id] = room
	log.Debug().Str("module", "store.memory").Str("room", id).Int("seats", seats).Msg("room created")
	return cloneRoom(room), nil
}

func (s *Memory) ReleaseRoom(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	delete(s.rooms, id)
	log.Debug().Str("module", "store.memory").Str("room", id).Msg("room released")
	return room, nil
}

func (s *Memory) JoinRoom(ctx context.Context, token, connID, name, endpointID, hubPortID string) (*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	roomID, _, err := domain.DecodeToken(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRoom, roomID)
	}
	if v, ok := room.Tokens[token]; !ok || v != token {
		return nil, fmt.Errorf("%w: token absent or already claimed", domain.ErrInvalidToken)
	}
	room.Tokens[token] = connID
	member := domain.Member{
		ID:         connID,
		Name:       name,
		Token:      token,
		RoomID:     roomID,
		EndpointID: endpointID,
		HubPortID:  hubPortID,
	}
	room.Members[connID] = member
	log.Debug().Str("module", "store.memory").Str("room", roomID).Str("conn", connID).Msg("member joined")
	return &member, nil
}

func (s *Memory) LeaveRoom(ctx context.Context, roomID, connID string) (*domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	member, ok := room.Members[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMemberNotFound, connID)
	}
	delete(room.Members, connID)
	delete(room.Tokens, member.Token)
	log.Debug().Str("module", "store.memory").Str("room", roomID).Str("conn", connID).Msg("member left")
	return &member, nil
}

// cloneRoom keeps callers from mutating store-owned maps.
func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	c.Tokens = maps.Clone(r.Tokens)
	c.Members = maps.Clone(r.Members)
	return &c
}
