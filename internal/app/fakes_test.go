package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/GroupCall/internal/media"
)

// fakeMedia records every created handle, release and connect so tests can
// assert the orchestrator's resource discipline. Object state is kept here,
// keyed by id, because resolve-by-id hands out fresh object values.
type fakeMedia struct {
	mu  sync.Mutex
	seq int

	createPipelineErr  error
	createMixerErr     error
	createEndpointErr  error
	createHubPortErr   error
	resolvePipelineErr error
	resolveMixerErr    error
	processOfferErr    error
	gatherErr          error

	created    map[string][]string // kind -> ids in creation order
	releases   map[string]int      // id -> release count
	connects   map[string][]string // source id -> sink ids
	candidates map[string][]webrtc.ICECandidateInit
	onCand     map[string]func(webrtc.ICECandidateInit)
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		created:    make(map[string][]string),
		releases:   make(map[string]int),
		connects:   make(map[string][]string),
		candidates: make(map[string][]webrtc.ICECandidateInit),
		onCand:     make(map[string]func(webrtc.ICECandidateInit)),
	}
}

func (m *fakeMedia) newID(kind string) string {
	m.seq++
	id := fmt.Sprintf("%s-%d", kind, m.seq)
	m.created[kind] = append(m.created[kind], id)
	return id
}

func (m *fakeMedia) releaseCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases[id]
}

func (m *fakeMedia) createdIDs(kind string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created[kind]...)
}

func (m *fakeMedia) connectedTo(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.connects[id]...)
}

func (m *fakeMedia) endpointCandidates(id string) []webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), m.candidates[id]...)
}

func (m *fakeMedia) CreatePipeline(ctx context.Context) (media.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPipelineErr != nil {
		return nil, m.createPipelineErr
	}
	return &fakePipeline{m: m, id: m.newID("pipeline")}, nil
}

func (m *fakeMedia) Pipeline(ctx context.Context, id string) (media.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolvePipelineErr != nil {
		return nil, m.resolvePipelineErr
	}
	return &fakePipeline{m: m, id: id}, nil
}

func (m *fakeMedia) Mixer(ctx context.Context, id string) (media.Mixer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveMixerErr != nil {
		return nil, m.resolveMixerErr
	}
	return &fakeMixer{m: m, id: id}, nil
}

func (m *fakeMedia) Close() error { return nil }

type fakePipeline struct {
	m  *fakeMedia
	id string
}

func (p *fakePipeline) ID() string { return p.id }

func (p *fakePipeline) CreateMixer(ctx context.Context) (media.Mixer, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.createMixerErr != nil {
		return nil, p.m.createMixerErr
	}
	return &fakeMixer{m: p.m, id: p.m.newID("mixer")}, nil
}

func (p *fakePipeline) CreateEndpoint(ctx context.Context) (media.Endpoint, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.createEndpointErr != nil {
		return nil, p.m.createEndpointErr
	}
	return &fakeEndpoint{m: p.m, id: p.m.newID("endpoint")}, nil
}

func (p *fakePipeline) Release(ctx context.Context) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	p.m.releases[p.id]++
	return nil
}

type fakeMixer struct {
	m  *fakeMedia
	id string
}

func (x *fakeMixer) ID() string { return x.id }

func (x *fakeMixer) CreateHubPort(ctx context.Context) (media.HubPort, error) {
	x.m.mu.Lock()
	defer x.m.mu.Unlock()
	if x.m.createHubPortErr != nil {
		return nil, x.m.createHubPortErr
	}
	return &fakeHubPort{m: x.m, id: x.m.newID("hubport")}, nil
}

func (x *fakeMixer) Release(ctx context.Context) error {
	x.m.mu.Lock()
	defer x.m.mu.Unlock()
	x.m.releases[x.id]++
	return nil
}

type fakeHubPort struct {
	m  *fakeMedia
	id string
}

func (h *fakeHubPort) ID() string { return h.id }

func (h *fakeHubPort) Connect(ctx context.Context, sink media.Endpoint) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.connects[h.id] = append(h.m.connects[h.id], sink.ID())
	return nil
}

func (h *fakeHubPort) Release(ctx context.Context) error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.m.releases[h.id]++
	return nil
}

type fakeEndpoint struct {
	m  *fakeMedia
	id string
}

func (e *fakeEndpoint) ID() string { return e.id }

func (e *fakeEndpoint) Connect(ctx context.Context, sink media.HubPort) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	e.m.connects[e.id] = append(e.m.connects[e.id], sink.ID())
	return nil
}

func (e *fakeEndpoint) ProcessOffer(ctx context.Context, sdpOffer string) (string, error) {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	if e.m.processOfferErr != nil {
		return "", e.m.processOfferErr
	}
	return "answer-to-" + sdpOffer, nil
}

func (e *fakeEndpoint) GatherCandidates(ctx context.Context) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	return e.m.gatherErr
}

func (e *fakeEndpoint) AddCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	e.m.candidates[e.id] = append(e.m.candidates[e.id], c)
	return nil
}

func (e *fakeEndpoint) OnCandidate(fn func(webrtc.ICECandidateInit)) {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	e.m.onCand[e.id] = fn
}

func (e *fakeEndpoint) Release(ctx context.Context) error {
	e.m.mu.Lock()
	defer e.m.mu.Unlock()
	e.m.releases[e.id]++
	return nil
}

// fakeNotifier records pushes instead of writing to sockets.
type fakeNotifier struct {
	mu         sync.Mutex
	stops      []string
	candidates map[string][]webrtc.ICECandidateInit
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{candidates: make(map[string][]webrtc.ICECandidateInit)}
}

func (n *fakeNotifier) NotifyIceCandidate(connID string, c webrtc.ICECandidateInit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.candidates[connID] = append(n.candidates[connID], c)
}

func (n *fakeNotifier) NotifyStopCommunication(connID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops = append(n.stops, connID)
}

func (n *fakeNotifier) stopped() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.stops...)
}
