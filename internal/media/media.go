// Package media is the interface boundary to the external media server.
// The signaling core only sequences creation, wiring and release of these
// resources; it never touches the media path itself.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Client is a connection to the media server.
// All creation and negotiation calls may block on network I/O and may fail;
// callers bound them with a context deadline.
type Client interface {
	// CreatePipeline allocates a new processing graph.
	CreatePipeline(ctx context.Context) (Pipeline, error)
	// Pipeline resolves a pipeline handle id created by any process.
	Pipeline(ctx context.Context, id string) (Pipeline, error)
	// Mixer resolves a mixer handle id created by any process.
	Mixer(ctx context.Context, id string) (Mixer, error)
	Close() error
}

// Pipeline is a media processing graph owned by one room.
type Pipeline interface {
	ID() string
	CreateMixer(ctx context.Context) (Mixer, error)
	CreateEndpoint(ctx context.Context) (Endpoint, error)
	Release(ctx context.Context) error
}

// Mixer is an N-way composite owned by one room.
type Mixer interface {
	ID() string
	CreateHubPort(ctx context.Context) (HubPort, error)
	Release(ctx context.Context) error
}

// HubPort is one mixer input/output, owned by one member.
type HubPort interface {
	ID() string
	// Connect feeds the mixed stream into the endpoint.
	Connect(ctx context.Context, sink Endpoint) error
	Release(ctx context.Context) error
}

// Endpoint is a per-client WebRTC terminus on a pipeline.
type Endpoint interface {
	ID() string
	// Connect feeds the client's stream into the hub port.
	Connect(ctx context.Context, sink HubPort) error
	// ProcessOffer runs SDP negotiation and returns the answer.
	ProcessOffer(ctx context.Context, sdpOffer string) (string, error)
	// GatherCandidates starts ICE gathering; gathered candidates arrive via
	// the OnCandidate callback.
	GatherCandidates(ctx context.Context) error
	AddCandidate(ctx context.Context, c webrtc.ICECandidateInit) error
	// OnCandidate registers the callback for locally gathered candidates.
	// Must be set before GatherCandidates.
	OnCandidate(fn func(webrtc.ICECandidateInit))
	Release(ctx context.Context) error
}
