package orchestrator

import "sync"

// playbackSlot owns the session's single audio output. Replacing the
// occupant always stops the previous playback first, so at most one
// utterance is ever audible.
type playbackSlot struct {
	mu      sync.Mutex
	current Playback
}

func (p *playbackSlot) replace(next Playback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Stop()
	}
	p.current = next
}
