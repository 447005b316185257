package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

type fakeChannelStore struct {
	channels        map[uuid.UUID]*Channel
	channelContexts map[uuid.UUID]*ChannelContext
	roles           map[uuid.UUID]*Role // keyed by agent id
	permissionSets  map[uuid.UUID]*PermissionSet
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{
		channels:        make(map[uuid.UUID]*Channel),
		channelContexts: make(map[uuid.UUID]*ChannelContext),
		roles:           make(map[uuid.UUID]*Role),
		permissionSets:  make(map[uuid.UUID]*PermissionSet),
	}
}

func (s *fakeChannelStore) Channel(_ context.Context, id uuid.UUID) (*Channel, error) {
	return s.channels[id], nil
}

func (s *fakeChannelStore) ChannelContext(_ context.Context, id uuid.UUID) (*ChannelContext, error) {
	return s.channelContexts[id], nil
}

func (s *fakeChannelStore) RoleByAgent(_ context.Context, agentID uuid.UUID) (*Role, error) {
	return s.roles[agentID], nil
}

func (s *fakeChannelStore) PermissionSetByID(_ context.Context, id uuid.UUID) (*PermissionSet, error) {
	return s.permissionSets[id], nil
}

func TestResolver_ChannelDefaultWinsOverContextAndRole(t *testing.T) {
	store := newFakeChannelStore()

	channelPSID := uuid.New()
	contextPSID := uuid.New()
	rolePSID := uuid.New()

	channelResource := uuid.New()
	contextResource := uuid.New()
	roleResource := uuid.New()

	grantID := uuid.New()
	store.permissionSets[channelPSID] = &PermissionSet{
		Grants:         map[protocol.ResourceCategory][]Grant{protocol.CategorySafeShell: {{ID: grantID, ResourceID: channelResource}}},
		DefaultGrantID: map[protocol.ResourceCategory]uuid.UUID{protocol.CategorySafeShell: grantID},
	}
	cGrantID := uuid.New()
	store.permissionSets[contextPSID] = &PermissionSet{
		Grants:         map[protocol.ResourceCategory][]Grant{protocol.CategorySafeShell: {{ID: cGrantID, ResourceID: contextResource}}},
		DefaultGrantID: map[protocol.ResourceCategory]uuid.UUID{protocol.CategorySafeShell: cGrantID},
	}
	rGrantID := uuid.New()
	store.permissionSets[rolePSID] = &PermissionSet{
		Grants:         map[protocol.ResourceCategory][]Grant{protocol.CategorySafeShell: {{ID: rGrantID, ResourceID: roleResource}}},
		DefaultGrantID: map[protocol.ResourceCategory]uuid.UUID{protocol.CategorySafeShell: rGrantID},
	}

	channelID := uuid.New()
	contextID := uuid.New()
	agentID := uuid.New()
	store.channels[channelID] = &Channel{ID: channelID, PermissionSetID: channelPSID}
	store.channelContexts[contextID] = &ChannelContext{ID: contextID, PermissionSetID: contextPSID}
	store.roles[agentID] = &Role{ID: uuid.New(), PermissionSetID: rolePSID}

	resolver := NewResolver(store)
	resourceID, ok := resolver.Resolve(context.Background(), protocol.ActionExecuteAsSafeShell, ResourceContext{
		ChannelID:        channelID,
		ChannelContextID: contextID,
		AgentID:          agentID,
	})

	if !ok {
		t.Fatalf("expected a resolved default resource")
	}
	if resourceID != channelResource {
		t.Fatalf("expected channel's default resource to win, got %v", resourceID)
	}
}

func TestResolver_FallsBackToRoleWhenChannelAndContextHaveNoDefault(t *testing.T) {
	store := newFakeChannelStore()

	rolePSID := uuid.New()
	roleResource := uuid.New()
	rGrantID := uuid.New()
	store.permissionSets[rolePSID] = &PermissionSet{
		Grants:         map[protocol.ResourceCategory][]Grant{protocol.CategorySafeShell: {{ID: rGrantID, ResourceID: roleResource}}},
		DefaultGrantID: map[protocol.ResourceCategory]uuid.UUID{protocol.CategorySafeShell: rGrantID},
	}

	agentID := uuid.New()
	store.roles[agentID] = &Role{ID: uuid.New(), PermissionSetID: rolePSID}

	resolver := NewResolver(store)
	resourceID, ok := resolver.Resolve(context.Background(), protocol.ActionExecuteAsSafeShell, ResourceContext{
		AgentID: agentID,
	})

	if !ok {
		t.Fatalf("expected the role's default to be found")
	}
	if resourceID != roleResource {
		t.Fatalf("expected role's default resource, got %v", resourceID)
	}
}

func TestResolver_NoDefaultAnywhereReturnsFalse(t *testing.T) {
	store := newFakeChannelStore()
	resolver := NewResolver(store)

	_, ok := resolver.Resolve(context.Background(), protocol.ActionExecuteAsSafeShell, ResourceContext{
		AgentID: uuid.New(),
	})

	if ok {
		t.Fatalf("expected no default resource to be found")
	}
}
