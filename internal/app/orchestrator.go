package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/domain"
	"github.com/dkeye/GroupCall/internal/media"
	"github.com/dkeye/GroupCall/internal/store"
)

const defaultMediaTimeout = 10 * time.Second

// Notifier pushes server-initiated messages to a connection, including
// connections owned by other instances (cross-process release notifications).
type Notifier interface {
	NotifyIceCandidate(connID string, c webrtc.ICECandidateInit)
	NotifyStopCommunication(connID string)
}

// Orchestrator coordinates rooms: it sequences media resource creation and
// release against the store's authoritative state, and guarantees that any
// partially created resource set is rolled back before an error propagates.
type Orchestrator struct {
	Store    store.SessionStore
	Registry *Registry
	Media    media.Client
	Notifier Notifier

	// Seats is the token count minted per new room.
	Seats int
	// MediaTimeout bounds every media server call; a negotiation that never
	// completes becomes a failed join instead of a leaked resource set.
	MediaTimeout time.Duration

	pending *candidateBuffer
}

func NewOrchestrator(st store.SessionStore, reg *Registry, mc media.Client, n Notifier, seats int, mediaTimeout time.Duration) *Orchestrator {
	if mediaTimeout <= 0 {
		mediaTimeout = defaultMediaTimeout
	}
	if seats <= 0 {
		seats = 10
	}
	return &Orchestrator{
		Store:        st,
		Registry:     reg,
		Media:        mc,
		Notifier:     n,
		Seats:        seats,
		MediaTimeout: mediaTimeout,
		pending:      newCandidateBuffer(),
	}
}

func (o *Orchestrator) mediaCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.MediaTimeout)
}

// releaseHandle releases a media handle outside the failing call's deadline.
func (o *Orchestrator) release(ctx context.Context, kind string, rel func(context.Context) error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.MediaTimeout)
	defer cancel()
	if err := rel(rctx); err != nil {
		log.Warn().Str("module", "app.orchestrator").Str("kind", kind).Err(err).Msg("handle release failed")
	}
}

// Rooms returns the externally visible projection of every live room, media
// handle ids stripped. Hydration is fail-fast: a partial listing would let
// callers make capacity decisions on wrong data. Rooms that disappear between
// key enumeration and hydration are skipped; that is normal churn.
func (o *Orchestrator) Rooms(ctx context.Context) ([]*domain.Room, error) {
	keys, err := o.Store.RoomKeys(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]*domain.Room, 0, len(keys))
	for _, id := range keys {
		room, err := o.Store.Room(ctx, id)
		if errors.Is(err, domain.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room.View())
	}
	return rooms, nil
}

// CreateRoom builds the media resources for a new room and mints it in the
// store. Rollback is LIFO: if the store mint fails, the mixer is released
// before the pipeline.
func (o *Orchestrator) CreateRoom(ctx context.Context, creatorID string) (*domain.Room, error) {
	var cu cleanups
	defer cu.run()

	mctx, cancel := o.mediaCtx(ctx)
	defer cancel()

	pipeline, err := o.Media.CreatePipeline(mctx)
	if err != nil {
		return nil, err
	}
	cu.add(func() { o.release(ctx, "pipeline", pipeline.Release) })

	mixer, err := pipeline.CreateMixer(mctx)
	if err != nil {
		return nil, err
	}
	cu.add(func() { o.release(ctx, "mixer", mixer.Release) })

	room, err := o.Store.CreateRoom(ctx, creatorID, pipeline.ID(), mixer.ID(), o.Seats)
	if err != nil {
		return nil, err
	}

	cu.disarm()
	log.Info().Str("module", "app.orchestrator").Str("room", room.ID).Str("master", creatorID).Msg("room created")
	return room.View(), nil
}

// resolveRoom hydrates a room and re-resolves its media handles locally.
// Room lifetime in the store and resource lifetime in the media server are
// not transactionally linked; when a handle no longer resolves the room is
// corrupt, so it is scrapped (resolved handles released, members told to stop,
// record removed) and the original error surfaces.
func (o *Orchestrator) resolveRoom(ctx context.Context, roomID string) (*domain.Room, media.Pipeline, media.Mixer, error) {
	room, err := o.Store.Room(ctx, roomID)
	if err != nil {
		return nil, nil, nil, err
	}

	mctx, cancel := o.mediaCtx(ctx)
	defer cancel()

	pipeline, err := o.Media.Pipeline(mctx, room.PipelineID)
	if err != nil {
		o.scrapRoom(ctx, room, nil)
		return nil, nil, nil, err
	}
	mixer, err := o.Media.Mixer(mctx, room.MixerID)
	if err != nil {
		o.scrapRoom(ctx, room, pipeline)
		return nil, nil, nil, err
	}
	return room, pipeline, mixer, nil
}

// scrapRoom is the self-healing path for a room whose media resources are
// gone: best-effort release of what did resolve, stop pushes to members,
// state removal.
func (o *Orchestrator) scrapRoom(ctx context.Context, room *domain.Room, pipeline media.Pipeline) {
	log.Warn().Str("module", "app.orchestrator").Str("room", room.ID).Msg("scrapping room with unresolvable media handles")
	if pipeline != nil {
		o.release(ctx, "pipeline", pipeline.Release)
	}
	for connID := range room.Members {
		o.Notifier.NotifyStopCommunication(connID)
	}
	if _, err := o.Store.ReleaseRoom(context.WithoutCancel(ctx), room.ID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		log.Error().Str("module", "app.orchestrator").Str("room", room.ID).Err(err).Msg("failed to remove scrapped room")
	}
}

// ReleaseRoom tears a room down: media handles released, every member pushed a
// stopCommunication, record removed. Releasing a nonexistent room succeeds.
func (o *Orchestrator) ReleaseRoom(ctx context.Context, roomID string) error {
	room, pipeline, mixer, err := o.resolveRoom(ctx, roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	o.release(ctx, "mixer", mixer.Release)
	o.release(ctx, "pipeline", pipeline.Release)

	for connID := range room.Members {
		o.Notifier.NotifyStopCommunication(connID)
	}

	if _, err := o.Store.ReleaseRoom(ctx, roomID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}
	log.Info().Str("module", "app.orchestrator").Str("room", roomID).Msg("room released")
	return nil
}

// Join admits a connection into the room its token encodes and negotiates its
// media session. Every step is registered on a cleanup stack; a failure at any
// point (including a timed-out negotiation) unwinds all prior steps, the
// recorded store join included.
func (o *Orchestrator) Join(ctx context.Context, connID, name, token, sdpOffer string) (string, error) {
	roomID, seat, err := domain.DecodeToken(token)
	if err != nil {
		return "", err
	}

	room, pipeline, mixer, err := o.resolveRoom(ctx, roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidRoom, roomID)
	}
	if err != nil {
		return "", err
	}

	var cu cleanups
	defer cu.run()

	mctx, cancel := o.mediaCtx(ctx)
	defer cancel()

	endpoint, err := pipeline.CreateEndpoint(mctx)
	if err != nil {
		return "", err
	}
	cu.add(func() { o.release(ctx, "endpoint", endpoint.Release) })

	// Candidates that raced ahead of the join are applied first, in the
	// order they arrived.
	for _, cand := range o.pending.drain(connID) {
		if err := endpoint.AddCandidate(mctx, cand); err != nil {
			log.Warn().Str("module", "app.orchestrator").Str("conn", connID).Err(err).Msg("buffered candidate rejected")
		}
	}
	endpoint.OnCandidate(func(c webrtc.ICECandidateInit) {
		o.Notifier.NotifyIceCandidate(connID, c)
	})

	hubPort, err := mixer.CreateHubPort(mctx)
	if err != nil {
		return "", err
	}
	cu.add(func() { o.release(ctx, "hubPort", hubPort.Release) })

	displayName := fmt.Sprintf("%s#%d", name, seat)
	if _, err := o.Store.JoinRoom(ctx, token, connID, displayName, endpoint.ID(), hubPort.ID()); err != nil {
		return "", err
	}
	cu.add(func() {
		if _, err := o.Store.LeaveRoom(context.WithoutCancel(ctx), roomID, connID); err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			log.Warn().Str("module", "app.orchestrator").Str("conn", connID).Err(err).Msg("join rollback: store leave failed")
		}
	})

	if err := endpoint.Connect(mctx, hubPort); err != nil {
		return "", err
	}
	if err := hubPort.Connect(mctx, endpoint); err != nil {
		return "", err
	}

	answer, err := endpoint.ProcessOffer(mctx, sdpOffer)
	if err != nil {
		return "", fmt.Errorf("%w: process offer: %v", domain.ErrNegotiation, err)
	}
	if err := endpoint.GatherCandidates(mctx); err != nil {
		return "", fmt.Errorf("%w: gather candidates: %v", domain.ErrNegotiation, err)
	}

	o.Registry.Register(&ClientSession{
		ID:       connID,
		RoomID:   roomID,
		Token:    token,
		Name:     displayName,
		Endpoint: endpoint,
		HubPort:  hubPort,
	})

	cu.disarm()
	log.Info().Str("module", "app.orchestrator").Str("room", room.ID).Str("conn", connID).Int("seat", seat).Msg("member joined")
	return answer, nil
}

// Leave removes a connection's seat and releases its media resources. The
// registry's room id wins over the caller's hint. Calling without a prior
// join is a no-op.
func (o *Orchestrator) Leave(ctx context.Context, connID, roomIDHint string) error {
	o.pending.clear(connID)

	roomID := roomIDHint
	if sess, ok := o.Registry.Unregister(ctx, connID); ok && sess.RoomID != "" {
		roomID = sess.RoomID
	}
	if roomID == "" {
		return nil
	}
	_, err := o.Store.LeaveRoom(ctx, roomID, connID)
	if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrMemberNotFound) {
		return nil
	}
	return err
}

// AddIceCandidate applies a remote candidate to the connection's endpoint, or
// buffers it when signaling outran the join.
func (o *Orchestrator) AddIceCandidate(ctx context.Context, connID string, cand webrtc.ICECandidateInit) error {
	if sess, ok := o.Registry.Lookup(connID); ok && sess.Endpoint != nil {
		mctx, cancel := o.mediaCtx(ctx)
		defer cancel()
		return sess.Endpoint.AddCandidate(mctx, cand)
	}
	o.pending.push(connID, cand)
	return nil
}
