package job

import "fmt"

// validTransitions encodes the state machine of §3: Queued →
// {AwaitingApproval, Denied, Executing, Cancelled}; AwaitingApproval →
// {Executing, Denied, Cancelled}; Executing → {Completed, Failed,
// Cancelled}. Terminal states have no outgoing edges. Queued→Cancelled
// covers §4.4's "Cancel allowed from any non-terminal state": §5 notes a
// Submit can be cancelled before its verdict lands, leaving the job in
// Queued at the time Cancel is called.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusAwaitingApproval: true,
		StatusDenied:           true,
		StatusExecuting:        true,
		StatusCancelled:        true,
	},
	StatusAwaitingApproval: {
		StatusExecuting: true,
		StatusDenied:    true,
		StatusCancelled: true,
	},
	StatusExecuting: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// InvariantViolation marks a transition or mutation the spec says must never
// be allowed to succeed silently — it throws rather than degrading to a
// logged no-op (§7).
type InvariantViolation struct {
	msg string
}

func (e *InvariantViolation) Error() string { return e.msg }

func newInvariantViolation(format string, args ...any) error {
	return &InvariantViolation{msg: fmt.Sprintf(format, args...)}
}

// transition validates and applies a status change, returning an
// InvariantViolation if the edge isn't in the state machine. Terminal states
// are handled by callers as idempotent no-ops, not as invariant violations —
// only a genuinely illegal edge (e.g. Completed → Executing) reaches here.
func (j *Job) transition(to Status) error {
	if j.Status == to {
		return newInvariantViolation("job %s already in status %s", j.ID, to)
	}
	edges, ok := validTransitions[j.Status]
	if !ok || !edges[to] {
		return newInvariantViolation("illegal transition %s -> %s for job %s", j.Status, to, j.ID)
	}
	j.Status = to
	return nil
}
