package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/GroupCall/internal/media"
)

// ClientSession is the process-local record of a live connection's negotiated
// media resources. It exists only on the instance handling that connection:
// the endpoint and hub port handles are only dereferenceable here.
type ClientSession struct {
	ID       string
	RoomID   string
	Token    string
	Name     string
	Endpoint media.Endpoint
	HubPort  media.HubPort
}

// Registry maps connection ids to their client sessions. Never shared across
// processes; each instance owns its own.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ClientSession
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*ClientSession)}
}

// Register records the session, overwriting any prior entry for the id.
func (r *Registry) Register(sess *ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[sess.ID] = sess
	log.Info().Str("module", "app.registry").Str("conn", sess.ID).Str("room", sess.RoomID).Msg("registered client")
}

func (r *Registry) Lookup(connID string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.clients[connID]
	return sess, ok
}

// Unregister removes the session and releases its owned media handles.
// Release is best effort: the connection is on its way out and cannot be told
// about failures, so they are logged and swallowed. Safe to call repeatedly.
func (r *Registry) Unregister(ctx context.Context, connID string) (*ClientSession, bool) {
	r.mu.Lock()
	sess, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	if sess.Endpoint != nil {
		if err := sess.Endpoint.Release(ctx); err != nil {
			log.Warn().Str("module", "app.registry").Str("conn", connID).Err(err).Msg("endpoint release failed")
		}
	}
	if sess.HubPort != nil {
		if err := sess.HubPort.Release(ctx); err != nil {
			log.Warn().Str("module", "app.registry").Str("conn", connID).Err(err).Msg("hub port release failed")
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", connID).Str("room", sess.RoomID).Msg("unregistered client")
	return sess, true
}
