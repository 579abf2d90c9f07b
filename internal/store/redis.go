package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/domain"
)

// Redis is the shared SessionStore. Room state is spread over three hashes
// per room (meta, tokens, members) under a common key prefix; every
// check-and-set path runs server-side as a Lua script so the claim is
// linearizable across processes.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "groupcall"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (s *Redis) roomKey(id string) string    { return s.prefix + ":room:" + id }
func (s *Redis) tokensKey(id string) string  { return s.prefix + ":tokens:" + id }
func (s *Redis) membersKey(id string) string { return s.prefix + ":members:" + id }

// joinScript claims a token and records the member in one step.
// KEYS = room, tokens, members; ARGV = token, connID, member JSON.
var joinScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'noroom'
end
local v = redis.call('HGET', KEYS[2], ARGV[1])
if not v or v ~= ARGV[1] then
  return 'taken'
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
return 'ok'
`)

// leaveScript removes the member and its token entry in one step.
// KEYS = members, tokens; ARGV = connID.
var leaveScript = redis.NewScript(`
local m = redis.call('HGET', KEYS[1], ARGV[1])
if not m then
  return false
end
redis.call('HDEL', KEYS[1], ARGV[1])
local member = cjson.decode(m)
if member['token'] then
  redis.call('HDEL', KEYS[2], member['token'])
end
return m
`)

// releaseScript snapshots the three hashes, deletes them, and returns the
// snapshot. KEYS = room, tokens, members.
var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local room = redis.call('HGETALL', KEYS[1])
local tokens = redis.call('HGETALL', KEYS[2])
local members = redis.call('HGETALL', KEYS[3])
redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
return {room, tokens, members}
`)

func (s *Redis) RoomKeys(ctx context.Context) ([]string, error) {
	var keys []string
	match := s.prefix + ":room:*"
	iter := s.rdb.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix+":room:"))
	}
	if err := iter.Err(); err != nil {
		return nil, upstream("scan rooms", err)
	}
	return keys, nil
}

func (s *Redis) Room(ctx context.Context, id string) (*domain.Room, error) {
	meta, err := s.rdb.HGetAll(ctx, s.roomKey(id)).Result()
	if err != nil {
		return nil, upstream("get room", err)
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	tokens, err := s.rdb.HGetAll(ctx, s.tokensKey(id)).Result()
	if err != nil {
		return nil, upstream("get tokens", err)
	}
	rawMembers, err := s.rdb.HGetAll(ctx, s.membersKey(id)).Result()
	if err != nil {
		return nil, upstream("get members", err)
	}
	return assembleRoom(meta, tokens, rawMembers)
}

func (s *Redis) CreateRoom(ctx context.Context, masterID, pipelineID, mixerID string, seats int) (*domain.Room, error) {
	for {
		id, err := domain.NewRoomID()
		if err != nil {
			return nil, err
		}
		// HSETNX on the meta hash is the atomic claim of the id.
		claimed, err := s.rdb.HSetNX(ctx, s.roomKey(id), "id", id).Result()
		if err != nil {
			return nil, upstream("claim room id", err)
		}
		if !claimed {
			log.Warn().Str("module", "store.redis").Str("room", id).Msg("room id collision, retrying")
			continue
		}

		tokens := domain.MintTokens(id, seats)
		_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, s.roomKey(id),
				"masterId", masterID,
				"mediaPipelineId", pipelineID,
				"compositeId", mixerID,
				"seats", strconv.Itoa(seats),
			)
			flat := make([]any, 0, len(tokens)*2)
			for t := range tokens {
				flat = append(flat, t, t)
			}
			p.HSet(ctx, s.tokensKey(id), flat...)
			return nil
		})
		if err != nil {
			// Best effort: do not leave a half-written room behind.
			s.rdb.Del(context.WithoutCancel(ctx), s.roomKey(id), s.tokensKey(id))
			return nil, upstream("write room", err)
		}

		return &domain.Room{
			ID:         id,
			MasterID:   masterID,
			PipelineID: pipelineID,
			MixerID:    mixerID,
			Seats:      seats,
			Tokens:     tokens,
			Members:    make(map[string]domain.Member),
		}, nil
	}
}

func (s *Redis) ReleaseRoom(ctx context.Context, id string) (*domain.Room, error) {
	res, err := releaseScript.Run(ctx, s.rdb,
		[]string{s.roomKey(id), s.tokensKey(id), s.membersKey(id)}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, upstream("release room", err)
	}
	parts, ok := res.([]any)
	if !ok || len(parts) != 3 {
		return nil, upstream("release room", fmt.Errorf("unexpected script reply %T", res))
	}
	return assembleRoom(flatToMap(parts[0]), flatToMap(parts[1]), flatToMap(parts[2]))
}

func (s *Redis) JoinRoom(ctx context.Context, token, connID, name, endpointID, hubPortID string) (*domain.Member, error) {
	roomID, _, err := domain.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	member := domain.Member{
		ID:         connID,
		Name:       name,
		Token:      token,
		RoomID:     roomID,
		EndpointID: endpointID,
		HubPortID:  hubPortID,
	}
	raw, err := json.Marshal(member)
	if err != nil {
		return nil, err
	}
	res, err := joinScript.Run(ctx, s.rdb,
		[]string{s.roomKey(roomID), s.tokensKey(roomID), s.membersKey(roomID)},
		token, connID, string(raw)).Text()
	if err != nil {
		return nil, upstream("join room", err)
	}
	switch res {
	case "noroom":
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidRoom, roomID)
	case "taken":
		return nil, fmt.Errorf("%w: token absent or already claimed", domain.ErrInvalidToken)
	}
	log.Debug().Str("module", "store.redis").Str("room", roomID).Str("conn", connID).Msg("member joined")
	return &member, nil
}

func (s *Redis) LeaveRoom(ctx context.Context, roomID, connID string) (*domain.Member, error) {
	raw, err := leaveScript.Run(ctx, s.rdb,
		[]string{s.membersKey(roomID), s.tokensKey(roomID)}, connID).Text()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMemberNotFound, connID)
	}
	if err != nil {
		return nil, upstream("leave room", err)
	}
	var member domain.Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return nil, upstream("leave room", err)
	}
	log.Debug().Str("module", "store.redis").Str("room", roomID).Str("conn", connID).Msg("member left")
	return &member, nil
}

func assembleRoom(meta, tokens, rawMembers map[string]string) (*domain.Room, error) {
	seats, err := strconv.Atoi(meta["seats"])
	if err != nil {
		return nil, upstream("parse room", fmt.Errorf("bad seats field: %q", meta["seats"]))
	}
	members := make(map[string]domain.Member, len(rawMembers))
	for connID, raw := range rawMembers {
		var m domain.Member
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, upstream("parse member", err)
		}
		members[connID] = m
	}
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &domain.Room{
		ID:         meta["id"],
		MasterID:   meta["masterId"],
		PipelineID: meta["mediaPipelineId"],
		MixerID:    meta["compositeId"],
		Seats:      seats,
		Tokens:     tokens,
		Members:    members,
	}, nil
}

// flatToMap converts a Lua HGETALL reply ([k1 v1 k2 v2 ...]) to a map.
func flatToMap(v any) map[string]string {
	flat, ok := v.([]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		val, _ := flat[i+1].(string)
		out[k] = val
	}
	return out
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", domain.ErrUpstream, op, err)
}
