package app

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// candidateBuffer holds ICE candidates that arrived before the connection's
// endpoint existed. Join drains them into the fresh endpoint in arrival order.
type candidateBuffer struct {
	mu     sync.Mutex
	queued map[string][]webrtc.ICECandidateInit
}

func newCandidateBuffer() *candidateBuffer {
	return &candidateBuffer{queued: make(map[string][]webrtc.ICECandidateInit)}
}

func (b *candidateBuffer) push(connID string, c webrtc.ICECandidateInit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queued[connID] = append(b.queued[connID], c)
}

// drain returns the buffered candidates in arrival order and forgets them.
func (b *candidateBuffer) drain(connID string) []webrtc.ICECandidateInit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queued[connID]
	delete(b.queued, connID)
	return out
}

func (b *candidateBuffer) clear(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queued, connID)
}
