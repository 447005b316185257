package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// PermissionSetLoader resolves the PermissionSet owned by a Role, keyed by
// role id. Implemented by internal/store; kept as an interface here so the
// evaluator has no I/O of its own beyond these three lookups.
type PermissionSetLoader interface {
	PermissionSetByRole(ctx context.Context, roleID uuid.UUID) (*PermissionSet, error)
	Agent(ctx context.Context, agentID uuid.UUID) (*Agent, error)
	User(ctx context.Context, userID string) (*User, error)
}

// Evaluator resolves whether a (caller, action, resource) tuple yields
// Approved / Pending / Denied (§4.1).
type Evaluator struct {
	store PermissionSetLoader
}

func NewEvaluator(store PermissionSetLoader) *Evaluator {
	return &Evaluator{store: store}
}

// Request is the input to Evaluate.
type Request struct {
	AgentID    uuid.UUID
	ActionKind protocol.ActionKind
	ResourceID uuid.UUID // uuid.Nil if the action is resourceless or unresolved
	Caller     Caller
}

// agentPermissionSet loads the PermissionSet owned by the agent's Role.
func (e *Evaluator) agentPermissionSet(ctx context.Context, agentID uuid.UUID) (*PermissionSet, error) {
	agent, err := e.store.Agent(ctx, agentID)
	if err != nil || agent == nil || agent.RoleID == uuid.Nil {
		return nil, fmt.Errorf("no role")
	}
	return e.store.PermissionSetByRole(ctx, agent.RoleID)
}

func (e *Evaluator) callerPermissionSet(ctx context.Context, c Caller) (*PermissionSet, error) {
	if c.IsUser() {
		u, err := e.store.User(ctx, c.UserID)
		if err != nil || u == nil || u.RoleID == uuid.Nil {
			return nil, fmt.Errorf("caller has no role")
		}
		return e.store.PermissionSetByRole(ctx, u.RoleID)
	}
	if c.IsAgent() {
		return e.agentPermissionSet(ctx, c.AgentID)
	}
	return nil, fmt.Errorf("anonymous caller")
}

// Evaluate implements the §4.1 contract.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) Result {
	// Step 1: load agent's PermissionSet.
	agentPS, err := e.agentPermissionSet(ctx, req.AgentID)
	if err != nil {
		return Denied("no role")
	}

	// Step 2: locate the permission — global flag or per-resource Grant.
	var grant Grant
	if req.ActionKind.IsGlobalFlag() {
		if !agentPS.Flags.Allows(req.ActionKind) {
			return Denied(fmt.Sprintf("agent does not have %s access", req.ActionKind))
		}
		// Global-flag actions carry no Grant; treat as always-wildcard at the
		// PermissionSet's default clearance.
		grant = Grant{ResourceID: AllResources, Clearance: ClearanceUnset}
	} else {
		category, _ := req.ActionKind.Category()
		if req.ResourceID == uuid.Nil {
			return Denied("ResourceId required")
		}
		g, ok := agentPS.FindGrant(category, req.ResourceID)
		if !ok {
			return Denied(fmt.Sprintf("agent does not have %s access", category))
		}
		grant = g
	}

	// Step 3: compute effective clearance via the fallback chain.
	level := agentPS.EffectiveClearance(grant)

	// Step 4: Level 5 needs no approver.
	if level == ClearanceLevel5Independent {
		return Approved(level, "independent")
	}

	// Step 5: load the caller's PermissionSet.
	if req.Caller.IsAnonymous() {
		return Pending(level, "no caller")
	}
	callerPS, err := e.callerPermissionSet(ctx, req.Caller)
	if err != nil || callerPS == nil {
		// A caller without a role holds no permission of its own, but may
		// still be on the agent PermissionSet's whitelists.
		callerPS = &PermissionSet{}
	}

	// Step 6: apply the level-specific rule.
	switch level {
	case ClearanceLevel1SameLevelUser:
		if req.Caller.IsUser() && e.holdsSamePermission(callerPS, req.ActionKind, req.ResourceID) {
			return Approved(level, "same-level user")
		}
		return Pending(level, "insufficient")

	case ClearanceLevel2WhitelistedUser:
		if req.Caller.IsUser() && agentPS.ClearanceUserWhitelist[req.Caller.UserID] {
			return Approved(level, "whitelisted user")
		}
		if req.Caller.IsUser() && e.holdsSamePermission(callerPS, req.ActionKind, req.ResourceID) {
			return Approved(level, "same-level user")
		}
		return Pending(level, "insufficient")

	case ClearanceLevel3PermittedAgent:
		// No user may ever satisfy Level 3.
		if req.Caller.IsAgent() && e.holdsSamePermission(callerPS, req.ActionKind, req.ResourceID) {
			return Approved(level, "permitted agent")
		}
		return Pending(level, "insufficient")

	case ClearanceLevel4WhitelistedAgent:
		if req.Caller.IsAgent() && agentPS.ClearanceAgentWhitelist[req.Caller.AgentID.String()] {
			return Approved(level, "whitelisted agent")
		}
		if req.Caller.IsAgent() && e.holdsSamePermission(callerPS, req.ActionKind, req.ResourceID) {
			return Approved(level, "permitted agent")
		}
		if req.Caller.IsUser() && agentPS.ClearanceUserWhitelist[req.Caller.UserID] {
			return Approved(level, "whitelisted user")
		}
		if req.Caller.IsUser() && e.holdsSamePermission(callerPS, req.ActionKind, req.ResourceID) {
			return Approved(level, "same-level user")
		}
		return Pending(level, "insufficient")
	}

	slog.Warn("authz: unexpected clearance level", "level", level)
	return Pending(level, "insufficient")
}

// HoldsPermission reports whether caller independently holds the same
// permission as the one being evaluated, via their own role's
// PermissionSet (§4.1 Level 1/3's "personally holds the same permission").
// Used by the Level-1 pre-authorization fallback (§4.3): standing
// channel/context consent alone never satisfies Level 1 — the session user
// must also independently hold the permission.
func (e *Evaluator) HoldsPermission(ctx context.Context, caller Caller, kind protocol.ActionKind, resourceID uuid.UUID) bool {
	callerPS, err := e.callerPermissionSet(ctx, caller)
	if err != nil {
		return false
	}
	return e.holdsSamePermission(callerPS, kind, resourceID)
}

// holdsSamePermission reports whether the caller's own PermissionSet holds
// a Grant for the same category and resource (or AllResources) as the
// agent's — i.e. the caller "personally holds the same permission" (§4.1
// Level 1/3's wording).
func (e *Evaluator) holdsSamePermission(callerPS *PermissionSet, kind protocol.ActionKind, resourceID uuid.UUID) bool {
	if kind.IsGlobalFlag() {
		return callerPS.Flags.Allows(kind)
	}
	category, _ := kind.Category()
	_, ok := callerPS.FindGrant(category, resourceID)
	return ok
}
