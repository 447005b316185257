// Package authz implements the two-dimensional clearance check that gates
// every privileged action: the requesting agent must hold a Grant for the
// resource, and the approving principal (user, agent, or pre-authorized
// channel/context) must independently satisfy the resolved clearance level.
package authz

import "github.com/google/uuid"

// Clearance is one of the five approval levels a Grant or PermissionSet
// default can resolve to.
type Clearance int

const (
	// ClearanceUnset means no explicit level was set; the fallback chain
	// in PermissionSet.EffectiveClearance keeps walking (PermissionSet
	// default, then hard default).
	ClearanceUnset Clearance = iota
	ClearanceLevel1SameLevelUser
	ClearanceLevel2WhitelistedUser
	ClearanceLevel3PermittedAgent
	ClearanceLevel4WhitelistedAgent
	ClearanceLevel5Independent
)

// HardDefault is the clearance assumed when neither a Grant nor its owning
// PermissionSet specifies one (§4.1).
const HardDefault = ClearanceLevel1SameLevelUser

func (c Clearance) String() string {
	switch c {
	case ClearanceUnset:
		return "Unset"
	case ClearanceLevel1SameLevelUser:
		return "SameLevelUser"
	case ClearanceLevel2WhitelistedUser:
		return "WhitelistedUser"
	case ClearanceLevel3PermittedAgent:
		return "PermittedAgent"
	case ClearanceLevel4WhitelistedAgent:
		return "WhitelistedAgent"
	case ClearanceLevel5Independent:
		return "Independent"
	default:
		return "Unknown"
	}
}

// AllResources is the reserved wildcard resource id. A Grant whose
// ResourceID equals AllResources matches any resource in its category and
// is immutable once persisted (§3).
var AllResources = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Verdict is the outcome of a clearance evaluation (§4.1).
type Verdict int

const (
	VerdictDenied Verdict = iota
	VerdictPending
	VerdictApproved
)

func (v Verdict) String() string {
	switch v {
	case VerdictDenied:
		return "Denied"
	case VerdictPending:
		return "Pending"
	case VerdictApproved:
		return "Approved"
	default:
		return "Unknown"
	}
}

// Result is the full outcome of Evaluate: the verdict, the effective
// clearance that produced it, and a short human-readable reason used for
// job log entries.
type Result struct {
	Verdict            Verdict
	EffectiveClearance Clearance
	Reason             string
}

func Denied(reason string) Result {
	return Result{Verdict: VerdictDenied, Reason: reason}
}

func Pending(level Clearance, reason string) Result {
	return Result{Verdict: VerdictPending, EffectiveClearance: level, Reason: reason}
}

func Approved(level Clearance, reason string) Result {
	return Result{Verdict: VerdictApproved, EffectiveClearance: level, Reason: reason}
}
