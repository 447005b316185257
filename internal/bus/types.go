package bus

// Event is a server-side event broadcast to WebSocket clients of the chat
// gateway — tool-call starts, approval prompts, job status changes, and the
// final response, tagged by the closed protocol.ChatEvent set.
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventHandler handles a single broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription so the gateway
// server and the chat loop can be wired together without a direct
// dependency on the concrete Bus implementation.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
