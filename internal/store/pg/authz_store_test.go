package pg

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
)

// Covers the §3 wildcard-immutability invariant (scenario 8): a grant with
// resourceId=AllResources must reject any attempted update or delete.
// checkGrantMutable is the pure guard both UpdateGrantClearance and
// DeleteGrant consult before touching a row, so it's exercised directly
// rather than against a live database.

func TestCheckGrantMutable_RejectsWildcardGrant(t *testing.T) {
	wildcard := &authz.Grant{ID: uuid.New(), ResourceID: authz.AllResources, Clearance: authz.ClearanceLevel2WhitelistedUser}

	err := checkGrantMutable(wildcard)
	if err == nil {
		t.Fatal("expected InvariantViolation, got nil")
	}
	var iv *InvariantViolation
	if !errors.As(err, &iv) {
		t.Fatalf("expected *InvariantViolation, got %T: %v", err, err)
	}
}

func TestCheckGrantMutable_AllowsOrdinaryGrant(t *testing.T) {
	ordinary := &authz.Grant{ID: uuid.New(), ResourceID: uuid.New(), Clearance: authz.ClearanceLevel2WhitelistedUser}

	if err := checkGrantMutable(ordinary); err != nil {
		t.Fatalf("expected no error for non-wildcard grant, got %v", err)
	}
}

func TestCheckGrantMutable_AllowsMissingRow(t *testing.T) {
	if err := checkGrantMutable(nil); err != nil {
		t.Fatalf("expected no error for a nil (not-found) grant, got %v", err)
	}
}
