// Package job implements the Job Lifecycle Manager (§4.4): the persisted
// state machine that carries a submitted action from Queued through to a
// terminal status, appending an audit log entry at every transition.
package job

import (
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// Status is one of the states in the Job state machine (§3).
type Status string

const (
	StatusQueued           Status = "Queued"
	StatusAwaitingApproval Status = "AwaitingApproval"
	StatusExecuting        Status = "Executing"
	StatusCompleted        Status = "Completed"
	StatusFailed           Status = "Failed"
	StatusDenied           Status = "Denied"
	StatusCancelled        Status = "Cancelled"
)

// Terminal reports whether a job in this status may never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDenied, StatusCancelled:
		return true
	}
	return false
}

// Severity is the level of a LogEntry.
type Severity string

const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
)

// LogEntry is an append-only audit record attached to a Job, ordered by
// CreatedAt (§3).
type LogEntry struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Severity  Severity
	Message   string
	CreatedAt time.Time
}

// TranscriptionSegment is an append-only record of recognized speech
// attached to a transcription Job, ordered by StartTime (§3).
type TranscriptionSegment struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	Text       string
	StartTime  time.Duration
	EndTime    time.Duration
	Confidence *float64
	CreatedAt  time.Time
}

// Job is a submitted action moving through the lifecycle state machine (§3).
type Job struct {
	ID         uuid.UUID
	AgentID    uuid.UUID
	ChannelID  uuid.UUID
	CallerUser string    // empty if the caller was an agent or unresolved
	CallerAgentID uuid.UUID

	ActionKind protocol.ActionKind
	ResourceID uuid.UUID // uuid.Nil if resourceless

	Status             Status
	EffectiveClearance authz.Clearance

	ApprovedByUserID  string
	ApprovedByAgentID uuid.UUID

	// Action-specific payload. Only the fields relevant to ActionKind are
	// populated; the rest stay zero-valued.
	ScriptText      string
	WorkingDirectory string
	ShellKind        string
	TranscriptionModelID uuid.UUID
	TranscriptionDeviceID string
	Language             string

	ResultData string
	ErrorLog   string

	LogEntries             []LogEntry
	TranscriptionSegments  []TranscriptionSegment

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// AppendLog appends a LogEntry with a monotonic-non-decreasing CreatedAt
// relative to the job's existing entries (§8).
func (j *Job) AppendLog(now time.Time, severity Severity, message string) LogEntry {
	if len(j.LogEntries) > 0 {
		last := j.LogEntries[len(j.LogEntries)-1].CreatedAt
		if now.Before(last) {
			now = last
		}
	}
	entry := LogEntry{
		ID:        uuid.New(),
		JobID:     j.ID,
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
	}
	j.LogEntries = append(j.LogEntries, entry)
	return entry
}

// AppendSegment appends a TranscriptionSegment, preserving the non-decreasing
// StartTime invariant (§8) by construction of the caller's accumulated time.
func (j *Job) AppendSegment(seg TranscriptionSegment) {
	seg.JobID = j.ID
	if seg.ID == uuid.Nil {
		seg.ID = uuid.New()
	}
	j.TranscriptionSegments = append(j.TranscriptionSegments, seg)
}
