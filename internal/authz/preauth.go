package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// PreAuthChecker applies channel/context pre-authorization as a stand-in
// approver: it carries WhitelistedUser-level authority (§4.3). That means it
// can satisfy a Level 2 or Level 4 clearance outright. It can never satisfy
// Level 3 (PermittedAgent demands an actual agent caller) and can satisfy
// Level 1 only when the session user also independently holds the same
// permission via their own role — consent alone is not "the same user."
//
// Pre-authorization is not a separate standing-consent record: it is read
// live off the Channel's PermissionSet, then the ChannelContext's
// PermissionSet, for a grant matching the action (§4.3).
type PreAuthChecker struct {
	store ChannelLoader
}

func NewPreAuthChecker(store ChannelLoader) *PreAuthChecker {
	return &PreAuthChecker{store: store}
}

// Satisfies reports whether standing channel/context consent is sufficient
// to approve at the given clearance level. sessionUserHoldsOwnGrant is only
// consulted for the Level 1 fallback: §4.3 requires the session user to
// independently hold the same permission via their own role, not merely
// that a channel/context grant exists.
func (c *PreAuthChecker) Satisfies(ctx context.Context, level Clearance, rc ResourceContext, kind protocol.ActionKind, resourceID uuid.UUID, sessionUserHoldsOwnGrant bool) (bool, error) {
	switch level {
	case ClearanceLevel3PermittedAgent:
		// Never satisfiable by pre-authorization: requires an actual agent caller.
		return false, nil
	case ClearanceLevel5Independent:
		return true, nil
	}

	granted := c.preAuthorized(ctx, rc, kind, resourceID)
	if !granted {
		return false, nil
	}

	switch level {
	case ClearanceLevel2WhitelistedUser, ClearanceLevel4WhitelistedAgent:
		return true, nil
	case ClearanceLevel1SameLevelUser:
		// Consent alone isn't "the same user" — also require the session
		// user to independently hold the permission.
		return sessionUserHoldsOwnGrant, nil
	default:
		return false, nil
	}
}

// preAuthorized implements §4.3's check order: the Channel's PermissionSet
// first, then the ChannelContext's PermissionSet. A matching grant is any
// grant in the PS for the right category whose resourceId equals resourceID
// or AllResources (clearance value ignored); global-flag actions consult the
// PS's boolean flag instead.
func (c *PreAuthChecker) preAuthorized(ctx context.Context, rc ResourceContext, kind protocol.ActionKind, resourceID uuid.UUID) bool {
	for _, psID := range c.candidatePermissionSetIDs(ctx, rc) {
		if psID == uuid.Nil {
			continue
		}
		ps, err := c.store.PermissionSetByID(ctx, psID)
		if err != nil || ps == nil {
			continue
		}
		if kind.IsGlobalFlag() {
			if ps.Flags.Allows(kind) {
				return true
			}
			continue
		}
		category, ok := kind.Category()
		if !ok {
			continue
		}
		if _, ok := ps.FindGrant(category, resourceID); ok {
			return true
		}
	}
	return false
}

// candidatePermissionSetIDs orders Channel before ChannelContext, matching
// §4.3's "channel PS first, then context PS" — unlike Resolver's
// default-resource chain, the agent's Role PermissionSet is never consulted
// here: pre-authorization is a property of the channel, not the agent.
func (c *PreAuthChecker) candidatePermissionSetIDs(ctx context.Context, rc ResourceContext) []uuid.UUID {
	var ids []uuid.UUID
	if rc.ChannelID != uuid.Nil {
		if ch, err := c.store.Channel(ctx, rc.ChannelID); err == nil && ch != nil {
			ids = append(ids, ch.PermissionSetID)
		}
	}
	if rc.ChannelContextID != uuid.Nil {
		if cc, err := c.store.ChannelContext(ctx, rc.ChannelContextID); err == nil && cc != nil {
			ids = append(ids, cc.PermissionSetID)
		}
	}
	return ids
}
