package authz

import (
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// Grant is a (resourceId, clearance) record inside a PermissionSet for one
// resource category. A Grant whose ResourceID equals AllResources is the
// category's wildcard and, once persisted, is immutable (§3).
type Grant struct {
	ID         uuid.UUID
	ResourceID uuid.UUID
	Clearance  Clearance
}

// IsWildcard reports whether this Grant is the immutable AllResources entry.
func (g Grant) IsWildcard() bool {
	return g.ResourceID == AllResources
}

// Matches reports whether this Grant applies to the given resource: either
// an exact match, or the Grant is the category wildcard.
func (g Grant) Matches(resourceID uuid.UUID) bool {
	return g.ResourceID == resourceID || g.IsWildcard()
}

// GlobalFlags holds the boolean permissions for resourceless actions (§3).
type GlobalFlags struct {
	CreateSubAgent        bool
	CreateContainer       bool
	RegisterInfoStore     bool
	EditAnyTask           bool
	AccessLocalhostBrowser bool
	AccessLocalhostCLI    bool
}

// Allows reports whether the given global-flag action kind is enabled.
//
// AccessLocalhostBrowser and AccessLocalhostCLI are carried as flags (§3)
// but have no corresponding entry in the action-kind tag set of §6 — the
// same unevenness the spec calls out for EditAnyTask in §9. They are
// resolved here the same way: surfaced as real fields, never silently
// dropped, but with no dispatch path until a future action kind names them.
func (f GlobalFlags) Allows(kind protocol.ActionKind) bool {
	switch kind {
	case protocol.ActionCreateSubAgent:
		return f.CreateSubAgent
	case protocol.ActionCreateContainer:
		return f.CreateContainer
	case protocol.ActionRegisterInfoStore:
		return f.RegisterInfoStore
	case protocol.ActionEditAnyTask:
		return f.EditAnyTask
	}
	return false
}

// PermissionSet is the unit attached to roles, channels, and channel
// contexts (§3). Grants are keyed by category; each category may also name
// one Grant as its default (used by the Default-Resource Resolver, §4.2).
type PermissionSet struct {
	ID               uuid.UUID
	DefaultClearance Clearance
	Flags            GlobalFlags

	// Grants holds every Grant in every category.
	Grants map[protocol.ResourceCategory][]Grant

	// DefaultGrantID names, per category, the id of the Grant designated as
	// the default grant for that category (used for resource resolution).
	// Stored as an id rather than a pointer to avoid a construction-time
	// cycle between the PermissionSet and its own Grants (§9).
	DefaultGrantID map[protocol.ResourceCategory]uuid.UUID

	ClearanceUserWhitelist  map[string]bool // user ids accepted at Level 4 pre-check (Level 2 whitelist)
	ClearanceAgentWhitelist map[string]bool // agent ids accepted at Level 4

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindGrant returns the Grant in the category that matches resourceID —
// preferring an exact match over a wildcard when both exist (§4.1 tie-break;
// either wins by spec, so exact-first is simply the deterministic choice).
func (p *PermissionSet) FindGrant(category protocol.ResourceCategory, resourceID uuid.UUID) (Grant, bool) {
	var wildcard *Grant
	for i := range p.Grants[category] {
		g := &p.Grants[category][i]
		if g.ResourceID == resourceID {
			return *g, true
		}
		if g.IsWildcard() {
			wildcard = g
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return Grant{}, false
}

// DefaultGrant returns the Grant designated as the category's default, if any.
func (p *PermissionSet) DefaultGrant(category protocol.ResourceCategory) (Grant, bool) {
	id, ok := p.DefaultGrantID[category]
	if !ok {
		return Grant{}, false
	}
	for _, g := range p.Grants[category] {
		if g.ID == id {
			return g, true
		}
	}
	return Grant{}, false
}

// EffectiveClearance resolves a Grant's clearance via the fallback chain:
// Grant value → PermissionSet default → HardDefault (§4.1).
func (p *PermissionSet) EffectiveClearance(g Grant) Clearance {
	if g.Clearance != ClearanceUnset {
		return g.Clearance
	}
	if p.DefaultClearance != ClearanceUnset {
		return p.DefaultClearance
	}
	return HardDefault
}

// Role is a named owner of exactly one PermissionSet.
type Role struct {
	ID              uuid.UUID
	Name            string
	PermissionSetID uuid.UUID
}

// Caller identifies the principal behind a submission or approval: exactly
// one of UserID / AgentID is set.
type Caller struct {
	UserID  string
	AgentID uuid.UUID
}

func (c Caller) IsUser() bool  { return c.UserID != "" }
func (c Caller) IsAgent() bool { return c.AgentID != uuid.Nil }
func (c Caller) IsAnonymous() bool {
	return !c.IsUser() && !c.IsAgent()
}

// User references an optional Role.
type User struct {
	ID     string
	RoleID uuid.UUID // uuid.Nil if no role
}

// Agent references an optional Role and a Model (opaque to this package).
type Agent struct {
	ID      uuid.UUID
	RoleID  uuid.UUID // uuid.Nil if no role
	ModelID uuid.UUID
}

// Channel is a conversation anchor: an optional default Agent, an optional
// ChannelContext, an optional PermissionSet, and a set of agents allowed to
// substitute for the default agent on this channel (§3).
type Channel struct {
	ID               uuid.UUID
	Name             string
	DefaultAgentID   uuid.UUID // uuid.Nil if none
	ContextID        uuid.UUID // uuid.Nil if none
	PermissionSetID  uuid.UUID // uuid.Nil if none
	AllowedAgentIDs  map[uuid.UUID]bool
	DisableChatHeader bool
	CreatedAt        time.Time
}

// ChannelContext is a channel group with the same shape as Channel, serving
// as a fallback layer for channels attached to it (§3).
type ChannelContext struct {
	ID                uuid.UUID
	Name              string
	DefaultAgentID    uuid.UUID
	PermissionSetID   uuid.UUID
	AllowedAgentIDs   map[uuid.UUID]bool
	DisableChatHeader bool
	CreatedAt         time.Time
}
