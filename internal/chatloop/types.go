// Package chatloop implements the Chat Tool-Call Loop (§4.7): the per-message
// round-trip between the model and the job authorization engine, turning
// each tool call the model emits into a Job submission.
package chatloop

import (
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// roundCap is the maximum number of model round-trips per user message
// before the loop forces the current text as the final assistant message
// (§4.7).
const roundCap = 10

// toolActionKind is the fixed tool-name -> action-kind table (§4.7 step 3a).
var toolActionKind = map[string]protocol.ActionKind{
	"create_subagent":      protocol.ActionCreateSubAgent,
	"create_container":     protocol.ActionCreateContainer,
	"register_info_store":  protocol.ActionRegisterInfoStore,
	"edit_any_task":        protocol.ActionEditAnyTask,
	"safe_shell":           protocol.ActionExecuteAsSafeShell,
	"exec":                 protocol.ActionUnsafeExecuteAsDangerousShell,
	"access_local_info":    protocol.ActionAccessLocalInfoStore,
	"access_external_info": protocol.ActionAccessExternalInfoStore,
	"web_fetch":            protocol.ActionAccessWebsite,
	"web_search":           protocol.ActionQuerySearchEngine,
	"access_container":     protocol.ActionAccessContainer,
	"manage_agent":         protocol.ActionManageAgent,
	"edit_task":            protocol.ActionEditTask,
	"access_skill":         protocol.ActionAccessSkill,
	"transcribe_device":    protocol.ActionTranscribeFromAudioDevice,
	"transcribe_stream":    protocol.ActionTranscribeFromAudioStream,
	"transcribe_file":      protocol.ActionTranscribeFromAudioFile,
}

// ActionKindForTool resolves a model tool-call name to its action kind.
func ActionKindForTool(toolName string) (protocol.ActionKind, bool) {
	kind, ok := toolActionKind[toolName]
	return kind, ok
}

// ApprovalCallback is invoked when a submitted job lands in AwaitingApproval
// and the session user could plausibly satisfy its clearance: the caller
// decides whether to Approve or Cancel (§4.7 step 3c).
type ApprovalCallback func(j *job.Job) (approve bool)

// Snapshot is the subset of Job fields surfaced to chat clients and
// attached to a ChatResponse (§4.7: "a list of resulting Job snapshots is
// attached to the response").
type Snapshot struct {
	JobID              uuid.UUID
	ActionKind         protocol.ActionKind
	Status             job.Status
	EffectiveClearance string
	ResultData         string
	ErrorLog           string
}

func snapshotOf(j *job.Job) Snapshot {
	return Snapshot{
		JobID:              j.ID,
		ActionKind:         j.ActionKind,
		Status:             j.Status,
		EffectiveClearance: j.EffectiveClearance.String(),
		ResultData:         j.ResultData,
		ErrorLog:           j.ErrorLog,
	}
}
