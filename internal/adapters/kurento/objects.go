package kurento

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/GroupCall/internal/media"
)

// The concrete media objects are thin ids plus a back-reference to the client.
// State lives entirely on the media server.

type pipeline struct {
	c  *Client
	id string
}

type mixer struct {
	c  *Client
	id string
}

type hubPort struct {
	c  *Client
	id string
}

type endpoint struct {
	c  *Client
	id string
}

func (c *Client) CreatePipeline(ctx context.Context) (media.Pipeline, error) {
	id, err := c.create(ctx, "MediaPipeline", nil)
	if err != nil {
		return nil, err
	}
	return &pipeline{c: c, id: id}, nil
}

func (c *Client) Pipeline(ctx context.Context, id string) (media.Pipeline, error) {
	if err := c.describe(ctx, id); err != nil {
		return nil, err
	}
	return &pipeline{c: c, id: id}, nil
}

func (c *Client) Mixer(ctx context.Context, id string) (media.Mixer, error) {
	if err := c.describe(ctx, id); err != nil {
		return nil, err
	}
	return &mixer{c: c, id: id}, nil
}

func (p *pipeline) ID() string { return p.id }

func (p *pipeline) CreateMixer(ctx context.Context) (media.Mixer, error) {
	id, err := p.c.create(ctx, "Composite", map[string]any{"mediaPipeline": p.id})
	if err != nil {
		return nil, err
	}
	return &mixer{c: p.c, id: id}, nil
}

func (p *pipeline) CreateEndpoint(ctx context.Context) (media.Endpoint, error) {
	id, err := p.c.create(ctx, "WebRtcEndpoint", map[string]any{"mediaPipeline": p.id})
	if err != nil {
		return nil, err
	}
	ep := &endpoint{c: p.c, id: id}
	if err := p.c.subscribe(ctx, id, "OnIceCandidate"); err != nil {
		_ = p.c.release(context.WithoutCancel(ctx), id)
		return nil, err
	}
	return ep, nil
}

func (p *pipeline) Release(ctx context.Context) error {
	return p.c.release(ctx, p.id)
}

func (m *mixer) ID() string { return m.id }

func (m *mixer) CreateHubPort(ctx context.Context) (media.HubPort, error) {
	id, err := m.c.create(ctx, "HubPort", map[string]any{"hub": m.id})
	if err != nil {
		return nil, err
	}
	return &hubPort{c: m.c, id: id}, nil
}

func (m *mixer) Release(ctx context.Context) error {
	return m.c.release(ctx, m.id)
}

func (h *hubPort) ID() string { return h.id }

func (h *hubPort) Connect(ctx context.Context, sink media.Endpoint) error {
	_, err := h.c.invoke(ctx, h.id, "connect", map[string]any{"sink": sink.ID()})
	return err
}

func (h *hubPort) Release(ctx context.Context) error {
	return h.c.release(ctx, h.id)
}

func (e *endpoint) ID() string { return e.id }

func (e *endpoint) Connect(ctx context.Context, sink media.HubPort) error {
	_, err := e.c.invoke(ctx, e.id, "connect", map[string]any{"sink": sink.ID()})
	return err
}

func (e *endpoint) ProcessOffer(ctx context.Context, sdpOffer string) (string, error) {
	return e.c.invoke(ctx, e.id, "processOffer", map[string]any{"offer": sdpOffer})
}

func (e *endpoint) GatherCandidates(ctx context.Context) error {
	_, err := e.c.invoke(ctx, e.id, "gatherCandidates", nil)
	return err
}

func (e *endpoint) AddCandidate(ctx context.Context, cand webrtc.ICECandidateInit) error {
	payload := map[string]any{
		"__module__": "kurento",
		"__type__":   "IceCandidate",
		"candidate":  cand.Candidate,
	}
	if cand.SDPMid != nil {
		payload["sdpMid"] = *cand.SDPMid
	}
	if cand.SDPMLineIndex != nil {
		payload["sdpMLineIndex"] = *cand.SDPMLineIndex
	}
	_, err := e.c.invoke(ctx, e.id, "addIceCandidate", map[string]any{"candidate": payload})
	return err
}

func (e *endpoint) OnCandidate(fn func(webrtc.ICECandidateInit)) {
	e.c.setHandler(e.id, fn)
}

func (e *endpoint) Release(ctx context.Context) error {
	return e.c.release(ctx, e.id)
}
