package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// candidatePayload is the wire shape of an ICE candidate, both inbound
// (onIceCandidate requests) and outbound (iceCandidate pushes).
type candidatePayload struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

func toCandidateInit(p candidatePayload) webrtc.ICECandidateInit {
	cand := webrtc.ICECandidateInit{Candidate: p.Candidate}
	if p.SDPMid != "" {
		mid := p.SDPMid
		cand.SDPMid = &mid
	}
	idx := p.SDPMLineIndex
	cand.SDPMLineIndex = &idx
	return cand
}

func fromCandidateInit(ci webrtc.ICECandidateInit) candidatePayload {
	p := candidatePayload{Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		p.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		p.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return p
}

// handleCandidate has no response tag: candidates flow one way and a reply
// would only add chatter during negotiation.
func (ctl *Controller) handleCandidate(ctx context.Context, connID string, data []byte) {
	var p struct {
		Candidate candidatePayload `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	if err := ctl.Orch.AddIceCandidate(ctx, connID, toCandidateInit(p.Candidate)); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", connID).Msg("add ice candidate")
	}
}
