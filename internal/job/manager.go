package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// AgentResolver resolves which agent handles a submission on a channel: the
// channel's default agent, or an explicit override that must be among the
// channel's allowed agents (§4.4 step 1).
type AgentResolver interface {
	ResolveAgent(ctx context.Context, channelID, override uuid.UUID) (uuid.UUID, error)
}

// Executor dispatches an Approved job to its action-kind handler and returns
// the textual resultData, or an error that the Manager converts to Failed
// (§4.5, §7 ExecutionFailure).
type Executor interface {
	Dispatch(ctx context.Context, j *Job) (resultData string, err error)
}

// TranscriptionStopper lets Cancel/StopTranscription reach into the
// transcription orchestrator for a running job (§4.6).
type TranscriptionStopper interface {
	Stop(jobID uuid.UUID) error
}

// Manager implements Submit/Approve/Cancel/StopTranscription (§4.4).
type Manager struct {
	store      Store
	agents     AgentResolver
	resolver   *authz.Resolver
	evaluator  *authz.Evaluator
	preauth    *authz.PreAuthChecker
	executor   Executor
	transcribe TranscriptionStopper
	now        func() time.Time
}

func NewManager(store Store, agents AgentResolver, resolver *authz.Resolver, evaluator *authz.Evaluator, preauth *authz.PreAuthChecker, executor Executor, transcribe TranscriptionStopper) *Manager {
	return &Manager{
		store:      store,
		agents:     agents,
		resolver:   resolver,
		evaluator:  evaluator,
		preauth:    preauth,
		executor:   executor,
		transcribe: transcribe,
		now:        time.Now,
	}
}

// SubmitRequest is the input to Submit (§4.4).
type SubmitRequest struct {
	ChannelID        uuid.UUID
	AgentOverride    uuid.UUID // uuid.Nil to use the channel's default agent
	ChannelContextID uuid.UUID
	ActionKind       protocol.ActionKind
	ResourceID       uuid.UUID // uuid.Nil to trigger §4.2 resolution
	CallerUserID     string
	CallerAgentID    uuid.UUID

	ScriptText            string
	WorkingDirectory      string
	ShellKind             string
	TranscriptionModelID  uuid.UUID
	TranscriptionDeviceID string
	Language              string
}

// Submit implements §4.4 steps 1-7.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	agentID, err := m.agents.ResolveAgent(ctx, req.ChannelID, req.AgentOverride)
	if err != nil {
		return nil, fmt.Errorf("resolve agent: %w", err)
	}

	resourceID := req.ResourceID
	if resourceID == uuid.Nil {
		if resolved, ok := m.resolver.Resolve(ctx, req.ActionKind, authz.ResourceContext{
			ChannelID:        req.ChannelID,
			ChannelContextID: req.ChannelContextID,
			AgentID:          agentID,
		}); ok {
			resourceID = resolved
		}
	}

	j := &Job{
		ID:                    uuid.New(),
		AgentID:               agentID,
		ChannelID:             req.ChannelID,
		CallerUser:            req.CallerUserID,
		CallerAgentID:         req.CallerAgentID,
		ActionKind:            req.ActionKind,
		ResourceID:            resourceID,
		Status:                StatusQueued,
		ScriptText:            req.ScriptText,
		WorkingDirectory:      req.WorkingDirectory,
		ShellKind:             req.ShellKind,
		TranscriptionModelID:  req.TranscriptionModelID,
		TranscriptionDeviceID: req.TranscriptionDeviceID,
		Language:              req.Language,
		CreatedAt:             m.now(),
	}
	j.AppendLog(m.now(), SeverityInfo, "queued")
	if err := m.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	result := m.evaluator.Evaluate(ctx, authz.Request{
		AgentID:    agentID,
		ActionKind: req.ActionKind,
		ResourceID: resourceID,
		Caller:     authz.Caller{UserID: req.CallerUserID, AgentID: req.CallerAgentID},
	})
	j.EffectiveClearance = result.EffectiveClearance

	switch result.Verdict {
	case authz.VerdictApproved:
		j.AppendLog(m.now(), SeverityInfo, "Permission granted: "+result.Reason)
		m.execute(ctx, j)

	case authz.VerdictPending:
		// §4.3: pre-authorization alone never satisfies Level 1 — the session
		// user must also independently hold the permission via their own role.
		sessionUserHoldsOwnGrant := req.CallerUserID != "" &&
			m.evaluator.HoldsPermission(ctx, authz.Caller{UserID: req.CallerUserID}, req.ActionKind, resourceID)
		satisfied, err := m.preauth.Satisfies(ctx, result.EffectiveClearance, authz.ResourceContext{
			ChannelID:        req.ChannelID,
			ChannelContextID: req.ChannelContextID,
			AgentID:          agentID,
		}, req.ActionKind, resourceID, sessionUserHoldsOwnGrant)
		if err == nil && satisfied {
			j.AppendLog(m.now(), SeverityInfo, "Pre-authorized by channel/context permission set")
			m.execute(ctx, j)
		} else {
			if err := j.transition(StatusAwaitingApproval); err != nil {
				return nil, err
			}
			j.AppendLog(m.now(), SeverityInfo, "awaiting approval: "+result.Reason)
		}

	default: // Denied
		if err := j.transition(StatusDenied); err != nil {
			return nil, err
		}
		j.AppendLog(m.now(), SeverityWarning, "Denied: "+result.Reason)
		m.completeNow(j)
	}

	if err := m.store.Update(ctx, j); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	return j, nil
}

// Approve implements §4.4's Approve contract: only from AwaitingApproval,
// re-runs §4.1 with the approver as caller.
func (m *Manager) Approve(ctx context.Context, jobID uuid.UUID, approver authz.Caller) (*Job, error) {
	j, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		j.AppendLog(m.now(), SeverityWarning, fmt.Sprintf("rejected: already %s", j.Status))
		return j, m.store.Update(ctx, j)
	}
	if j.Status != StatusAwaitingApproval {
		j.AppendLog(m.now(), SeverityWarning, fmt.Sprintf("rejected: already %s", j.Status))
		return j, m.store.Update(ctx, j)
	}

	result := m.evaluator.Evaluate(ctx, authz.Request{
		AgentID:    j.AgentID,
		ActionKind: j.ActionKind,
		ResourceID: j.ResourceID,
		Caller:     approver,
	})

	switch result.Verdict {
	case authz.VerdictApproved:
		j.ApprovedByUserID = approver.UserID
		j.ApprovedByAgentID = approver.AgentID
		j.AppendLog(m.now(), SeverityInfo, "Permission granted: "+result.Reason)
		m.execute(ctx, j)
	case authz.VerdictPending:
		j.AppendLog(m.now(), SeverityWarning, "insufficient")
	default:
		if err := j.transition(StatusDenied); err != nil {
			return nil, err
		}
		j.AppendLog(m.now(), SeverityWarning, "permission revoked")
		m.completeNow(j)
	}

	if err := m.store.Update(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Cancel implements §4.4's Cancel contract: allowed from any non-terminal
// state; idempotent after a terminal state.
func (m *Manager) Cancel(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	j, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		j.AppendLog(m.now(), SeverityWarning, fmt.Sprintf("rejected: already %s", j.Status))
		return j, m.store.Update(ctx, j)
	}

	if j.ActionKind.IsTranscription() && m.transcribe != nil {
		_ = m.transcribe.Stop(j.ID)
	}

	if err := j.transition(StatusCancelled); err != nil {
		return nil, err
	}
	j.AppendLog(m.now(), SeverityInfo, "Job cancelled")
	m.completeNow(j)
	return j, m.store.Update(ctx, j)
}

// StopTranscription implements §4.4: only from Executing, only for
// transcription kinds, transitions Executing -> Completed cleanly.
func (m *Manager) StopTranscription(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	j, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusExecuting || !j.ActionKind.IsTranscription() {
		j.AppendLog(m.now(), SeverityWarning, fmt.Sprintf("rejected: already %s", j.Status))
		return j, m.store.Update(ctx, j)
	}

	if m.transcribe != nil {
		_ = m.transcribe.Stop(j.ID)
	}

	if err := j.transition(StatusCompleted); err != nil {
		return nil, err
	}
	j.AppendLog(m.now(), SeverityInfo, "transcription stopped")
	m.completeNow(j)
	return j, m.store.Update(ctx, j)
}

// execute transitions a job to Executing and dispatches it, converting any
// executor error into Failed (§4.5, §7).
func (m *Manager) execute(ctx context.Context, j *Job) {
	if err := j.transition(StatusExecuting); err != nil {
		j.AppendLog(m.now(), SeverityError, err.Error())
		return
	}
	started := m.now()
	j.StartedAt = &started

	// Transcription jobs run as a long-lived background task and return to
	// Executing immediately; the orchestrator (§4.6) drives their terminal
	// transition via StopTranscription/Cancel.
	if j.ActionKind.IsTranscription() {
		if _, err := m.executor.Dispatch(ctx, j); err != nil {
			j.ErrorLog = err.Error()
			if terr := j.transition(StatusFailed); terr == nil {
				j.AppendLog(m.now(), SeverityError, err.Error())
				m.completeNow(j)
			}
		}
		return
	}

	resultData, err := m.executor.Dispatch(ctx, j)
	if err != nil {
		j.ErrorLog = err.Error()
		if terr := j.transition(StatusFailed); terr == nil {
			j.AppendLog(m.now(), SeverityError, err.Error())
			m.completeNow(j)
		}
		return
	}

	j.ResultData = resultData
	if err := j.transition(StatusCompleted); err == nil {
		j.AppendLog(m.now(), SeverityInfo, "Job completed successfully")
		m.completeNow(j)
	}
}

func (m *Manager) completeNow(j *Job) {
	completed := m.now()
	j.CompletedAt = &completed
}
