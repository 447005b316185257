package methods

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/bus"
	"github.com/nextlevelbuilder/jobauth/internal/gateway"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// JobMethods exposes read access to a job's current state and lets an
// approver resolve one sitting in AwaitingApproval (§4.4 step 7, §6).
type JobMethods struct {
	store    job.Store
	eventPub bus.EventPublisher
}

func NewJobMethods(store job.Store, eventPub bus.EventPublisher) *JobMethods {
	return &JobMethods{store: store, eventPub: eventPub}
}

// Register binds jobs.get and jobs.subscribe against router. Approving or
// cancelling a suspended job is a *job.Manager operation, registered
// separately via JobApprovalMethods once a Manager is available.
func (m *JobMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodJobsGet, m.handleGet)
	router.Register(protocol.MethodJobsSubscribe, m.handleSubscribe)
}

type jobIDParams struct {
	JobID string `json:"job_id"`
}

func (m *JobMethods) handleGet(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p jobIDParams
	if req.Params != nil {
		json.Unmarshal(req.Params, &p)
	}

	id, err := uuid.Parse(p.JobID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid job_id"))
		return
	}

	j, err := m.store.Get(ctx, id)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, "job not found"))
		return
	}

	client.SendResponse(protocol.NewOKResponse(req.ID, jobView(j)))
}

// handleSubscribe acknowledges a subscription request. Every connected
// client is already subscribed to the bus on connect (registerClient) and
// receives whatever is broadcast there; no component of this module
// broadcasts job.* events onto it. This method exists so a client can confirm the
// gateway is live on this connection before it starts sending chat.send
// calls that might suspend on approval.
func (m *JobMethods) handleSubscribe(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{"subscribed": true}))
}

func jobView(j *job.Job) map[string]interface{} {
	return map[string]interface{}{
		"id":                  j.ID,
		"agent_id":            j.AgentID,
		"channel_id":          j.ChannelID,
		"action_kind":         j.ActionKind,
		"resource_id":         j.ResourceID,
		"status":              j.Status,
		"effective_clearance": j.EffectiveClearance.String(),
		"result_data":         j.ResultData,
		"error_log":           j.ErrorLog,
	}
}

// JobApprovalMethods exposes jobs.approve/jobs.cancel/jobs.stopTranscription,
// the three operations that mutate a suspended job (§4.4, §4.6). Split from
// JobMethods because it needs the full *job.Manager (authorization +
// execution dispatch), not just the read-only Store.
type JobApprovalMethods struct {
	manager *job.Manager
}

func NewJobApprovalMethods(manager *job.Manager) *JobApprovalMethods {
	return &JobApprovalMethods{manager: manager}
}

func (m *JobApprovalMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodJobsApprove, m.handleApprove)
	router.Register(protocol.MethodJobsCancel, m.handleCancel)
	router.Register(protocol.MethodJobsStopTranscription, m.handleStopTranscription)
}

type approveParams struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
}

func (m *JobApprovalMethods) handleApprove(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p approveParams
	if req.Params != nil {
		json.Unmarshal(req.Params, &p)
	}

	id, err := uuid.Parse(p.JobID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid job_id"))
		return
	}

	j, err := m.manager.Approve(ctx, id, authz.Caller{UserID: p.UserID})
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, jobView(j)))
}

func (m *JobApprovalMethods) handleCancel(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p jobIDParams
	if req.Params != nil {
		json.Unmarshal(req.Params, &p)
	}

	id, err := uuid.Parse(p.JobID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid job_id"))
		return
	}

	j, err := m.manager.Cancel(ctx, id)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, jobView(j)))
}

func (m *JobApprovalMethods) handleStopTranscription(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var p jobIDParams
	if req.Params != nil {
		json.Unmarshal(req.Params, &p)
	}

	id, err := uuid.Parse(p.JobID)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid job_id"))
		return
	}

	j, err := m.manager.StopTranscription(ctx, id)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInternal, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, jobView(j)))
}
