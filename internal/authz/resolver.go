package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// ResourceContext carries the channel/context pair a submission arrived on,
// used by the Default-Resource Resolver to walk the PermissionSet priority
// chain when a tool call names an action but not a concrete resource (§4.2).
type ResourceContext struct {
	ChannelID        uuid.UUID
	ChannelContextID uuid.UUID
	AgentID          uuid.UUID
}

// ChannelLoader resolves Channel, ChannelContext, and the agent's Role, the
// three layers walked by Resolve.
type ChannelLoader interface {
	Channel(ctx context.Context, id uuid.UUID) (*Channel, error)
	ChannelContext(ctx context.Context, id uuid.UUID) (*ChannelContext, error)
	RoleByAgent(ctx context.Context, agentID uuid.UUID) (*Role, error)
	PermissionSetByID(ctx context.Context, id uuid.UUID) (*PermissionSet, error)
}

// Resolver implements the Default-Resource Resolver (§4.2): given an action
// kind with no explicit resource named, walk Channel PermissionSet →
// ChannelContext PermissionSet → the agent's Role PermissionSet, in that
// order, and return the first category default grant found.
type Resolver struct {
	store ChannelLoader
}

func NewResolver(store ChannelLoader) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the resource id that a resourceless tool call should be
// evaluated against. A zero uuid and false
// mean no layer names a default for this category.
func (r *Resolver) Resolve(ctx context.Context, kind protocol.ActionKind, rc ResourceContext) (uuid.UUID, bool) {
	category, ok := kind.Category()
	if !ok {
		return uuid.Nil, false
	}

	for _, psID := range r.candidatePermissionSetIDs(ctx, rc) {
		if psID == uuid.Nil {
			continue
		}
		ps, err := r.store.PermissionSetByID(ctx, psID)
		if err != nil || ps == nil {
			continue
		}
		if grant, ok := ps.DefaultGrant(category); ok {
			return grant.ResourceID, true
		}
	}
	return uuid.Nil, false
}

// candidatePermissionSetIDs returns the priority-ordered PermissionSet ids
// to walk: Channel, then ChannelContext, then the agent's Role (§4.2).
func (r *Resolver) candidatePermissionSetIDs(ctx context.Context, rc ResourceContext) []uuid.UUID {
	var ids []uuid.UUID

	if rc.ChannelID != uuid.Nil {
		if ch, err := r.store.Channel(ctx, rc.ChannelID); err == nil && ch != nil {
			ids = append(ids, ch.PermissionSetID)
		}
	}
	if rc.ChannelContextID != uuid.Nil {
		if cc, err := r.store.ChannelContext(ctx, rc.ChannelContextID); err == nil && cc != nil {
			ids = append(ids, cc.PermissionSetID)
		}
	}
	if rc.AgentID != uuid.Nil {
		if role, err := r.store.RoleByAgent(ctx, rc.AgentID); err == nil && role != nil {
			ids = append(ids, role.PermissionSetID)
		}
	}
	return ids
}
