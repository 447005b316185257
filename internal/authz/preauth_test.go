package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// fakePreAuthStore backs PreAuthChecker's ChannelLoader in tests.
type fakePreAuthStore struct {
	channel        *Channel
	channelContext *ChannelContext
	permSets       map[uuid.UUID]*PermissionSet
}

func (s *fakePreAuthStore) Channel(_ context.Context, id uuid.UUID) (*Channel, error) {
	if s.channel == nil || s.channel.ID != id {
		return nil, nil
	}
	return s.channel, nil
}

func (s *fakePreAuthStore) ChannelContext(_ context.Context, id uuid.UUID) (*ChannelContext, error) {
	if s.channelContext == nil || s.channelContext.ID != id {
		return nil, nil
	}
	return s.channelContext, nil
}

func (s *fakePreAuthStore) RoleByAgent(context.Context, uuid.UUID) (*Role, error) {
	return nil, nil
}

func (s *fakePreAuthStore) PermissionSetByID(_ context.Context, id uuid.UUID) (*PermissionSet, error) {
	return s.permSets[id], nil
}

// grantingStore builds a fakePreAuthStore whose channel and/or context
// PermissionSet (whichever ids are non-nil) holds a single safe_shell grant
// matching resourceID, or has a true global flag when kind is global-flag.
func grantingStore(channelID, contextID, resourceID uuid.UUID, kind protocol.ActionKind) *fakePreAuthStore {
	ps := &PermissionSet{ID: uuid.New(), Grants: map[protocol.ResourceCategory][]Grant{}}
	if kind.IsGlobalFlag() {
		ps.Flags.CreateSubAgent = true
	} else {
		category, _ := kind.Category()
		ps.Grants[category] = []Grant{{ID: uuid.New(), ResourceID: resourceID}}
	}
	store := &fakePreAuthStore{permSets: map[uuid.UUID]*PermissionSet{ps.ID: ps}}
	if channelID != uuid.Nil {
		store.channel = &Channel{ID: channelID, PermissionSetID: ps.ID}
	}
	if contextID != uuid.Nil {
		store.channelContext = &ChannelContext{ID: contextID, PermissionSetID: ps.ID}
	}
	return store
}

func TestPreAuthChecker_SatisfiesLevel2WhenChannelGrantMatches(t *testing.T) {
	channelID := uuid.New()
	resourceID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(channelID, uuid.Nil, resourceID, protocol.ActionExecuteAsSafeShell))

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel2WhitelistedUser,
		ResourceContext{ChannelID: channelID}, protocol.ActionExecuteAsSafeShell, resourceID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected channel grant to satisfy Level2")
	}
}

// TestPreAuthChecker_FallsBackToContextGrant covers spec scenario 4: the
// channel carries no PermissionSet, but its ChannelContext's PermissionSet
// holds a matching grant — pre-authorization must still apply.
func TestPreAuthChecker_FallsBackToContextGrant(t *testing.T) {
	contextID := uuid.New()
	resourceID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(uuid.Nil, contextID, resourceID, protocol.ActionExecuteAsSafeShell))

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel2WhitelistedUser,
		ResourceContext{ChannelContextID: contextID}, protocol.ActionExecuteAsSafeShell, resourceID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected context grant to satisfy Level2 when the channel has no PermissionSet")
	}
}

func TestPreAuthChecker_GlobalFlagAction(t *testing.T) {
	channelID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(channelID, uuid.Nil, uuid.Nil, protocol.ActionCreateSubAgent))

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel2WhitelistedUser,
		ResourceContext{ChannelID: channelID}, protocol.ActionCreateSubAgent, uuid.Nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected global flag to satisfy Level2")
	}
}

func TestPreAuthChecker_NeverSatisfiesLevel3(t *testing.T) {
	channelID := uuid.New()
	resourceID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(channelID, uuid.Nil, resourceID, protocol.ActionExecuteAsSafeShell))

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel3PermittedAgent,
		ResourceContext{ChannelID: channelID}, protocol.ActionExecuteAsSafeShell, resourceID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("pre-authorization must never satisfy Level3")
	}
}

func TestPreAuthChecker_Level1RequiresOwnGrantEvenWithConsent(t *testing.T) {
	channelID := uuid.New()
	resourceID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(channelID, uuid.Nil, resourceID, protocol.ActionExecuteAsSafeShell))
	rc := ResourceContext{ChannelID: channelID}

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel1SameLevelUser, rc, protocol.ActionExecuteAsSafeShell, resourceID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("Level1 must require an independent personal grant, not just consent")
	}

	ok, err = checker.Satisfies(context.Background(), ClearanceLevel1SameLevelUser, rc, protocol.ActionExecuteAsSafeShell, resourceID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("Level1 should be satisfied once consent and an own grant are both present")
	}
}

func TestPreAuthChecker_NoMatchingGrantNeverSatisfies(t *testing.T) {
	channelID := uuid.New()
	checker := NewPreAuthChecker(grantingStore(channelID, uuid.Nil, uuid.New(), protocol.ActionExecuteAsSafeShell))

	ok, err := checker.Satisfies(context.Background(), ClearanceLevel4WhitelistedAgent,
		ResourceContext{ChannelID: channelID}, protocol.ActionExecuteAsSafeShell, uuid.New(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no pre-authorization for an unmatched resource id")
	}
}
