package protocol

// ChatEvent is the closed tag set of the outward streaming chat event
// sequence (§6): TextDelta, ApprovalRequired, ApprovalDecision, ToolStart,
// Complete. Exactly one Complete event terminates the stream; an
// ApprovalDecision always follows the ApprovalRequired it resolves.
type ChatEvent string

const (
	EventTextDelta        ChatEvent = "text_delta"
	EventApprovalRequired ChatEvent = "approval_required"
	EventApprovalDecision ChatEvent = "approval_decision"
	EventToolStart        ChatEvent = "tool_start"
	EventComplete         ChatEvent = "complete"
)

// WebSocket/RPC event names pushed from the gateway to admin/audit clients.
const (
	EventJobCreated    = "job.created"
	EventJobTransition = "job.transition"
	EventJobLog        = "job.log"
	EventHealth        = "health"
	EventHeartbeat     = "heartbeat"
)

// ProtocolVersion is reported on the health endpoint so clients can detect
// a wire-incompatible upgrade.
const ProtocolVersion = 1

// EventFrame is the envelope a gateway WebSocket connection writes for every
// pushed event, whether it originated from the chat loop's streaming
// callback or a bus.Event forwarded from another client's job.
type EventFrame struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent builds an EventFrame. Kept as a function rather than a literal
// at call sites because payload shapes vary by event name and callers pass
// the raw value through.
func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{Name: name, Payload: payload}
}
