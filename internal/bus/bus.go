package bus

import "sync"

// Bus is the concrete, in-process EventPublisher: every WebSocket connection
// registers a handler under its connection id, and a publisher calls
// Broadcast once per event. Grounded on the same mutex-guarded-subscriber-map
// fan-out shape as internal/transcription's per-job broadcaster, generalized
// from a single typed channel per job to arbitrary named handlers shared
// across the whole gateway.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
}

func New() *Bus {
	return &Bus{handlers: make(map[string]EventHandler)}
}

func (b *Bus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[id] = handler
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

// Broadcast delivers event to every current subscriber. Handlers run
// synchronously on the caller's goroutine — callers that need to avoid
// blocking the publisher (e.g. a WebSocket write) must buffer internally,
// the same obligation internal/transcription places on its subscribers.
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(event)
	}
}

var _ EventPublisher = (*Bus)(nil)
