package domain

// Room is a shared call with a fixed seat count and backing media resources.
// The store is the authoritative owner; PipelineID and MixerID are opaque
// handles into the media server, resolvable only through the media client.
type Room struct {
	ID         string            `json:"id"`
	MasterID   string            `json:"masterId"`
	PipelineID string            `json:"mediaPipelineId,omitempty"`
	MixerID    string            `json:"compositeId,omitempty"`
	Seats      int               `json:"seats"`
	Tokens     map[string]string `json:"tokens"`
	Members    map[string]Member `json:"members"`
}

// TokenClaimed reports whether a seat token has been exchanged for a seat.
// An unclaimed token maps to itself; a claimed one maps to the winner's
// connection id.
func (r *Room) TokenClaimed(token string) bool {
	v, ok := r.Tokens[token]
	return ok && v != token
}

// View returns the externally visible projection: media handle ids stripped.
func (r *Room) View() *Room {
	return &Room{
		ID:       r.ID,
		MasterID: r.MasterID,
		Seats:    r.Seats,
		Tokens:   r.Tokens,
		Members:  r.Members,
	}
}
