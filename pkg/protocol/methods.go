package protocol

// RPC method name constants for the gateway's WebSocket/HTTP control surface.
// A wire protocol is explicitly out of scope for this spec (§1 Non-goals);
// these exist only so the gateway and its admin clients share names.
const (
	MethodChatSend     = "chat.send"
	MethodChatHistory  = "chat.history"
	MethodChatAbort    = "chat.abort"

	MethodJobsList     = "jobs.list"
	MethodJobsGet      = "jobs.get"
	MethodJobsApprove  = "jobs.approve"
	MethodJobsCancel   = "jobs.cancel"
	MethodJobsStopTranscription = "jobs.stopTranscription"
	MethodJobsSubscribe = "jobs.subscribe"

	MethodConnect = "connect"
	MethodHealth  = "health"
	MethodStatus  = "status"
)
