package transcription

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment is a transcribed span pushed onto a job's broadcast channel as it
// is produced (§4.6 step 4).
type Segment struct {
	JobID uuid.UUID
	Text  string
	Start time.Duration
	End   time.Duration
}

// broadcaster fans one job's segments out to arbitrarily many subscribers.
// Exactly one writer (the orchestrator's consumer goroutine) ever calls
// publish; membership (subscribe/unsubscribe) is guarded by a mutex since
// subscribers come and go from arbitrary goroutines (§5 shared-resources).
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Segment]struct{}
	closed      bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan Segment]struct{})}
}

func (b *broadcaster) subscribe() <-chan Segment {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Segment, 32)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

func (b *broadcaster) publish(seg Segment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subscribers {
		select {
		case ch <- seg:
		default:
			// A slow reader never blocks the single writer.
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
