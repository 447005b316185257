package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// AuthzStore backs authz.PermissionSetLoader and authz.ChannelLoader with a
// single Postgres connection — the read-mostly lookups the Clearance
// Evaluator, Default-Resource Resolver, and Pre-authorization checker need
// (§4.1-§4.3), plus the grant write path the Permission Store owns (§3).
// Grounded on the teacher's plain database/sql + JSONB-column style in
// sessions.go; the querying shape (named columns, $n placeholders, no ORM)
// is the same throughout.
type AuthzStore struct {
	db *sql.DB
}

func NewAuthzStore(db *sql.DB) *AuthzStore {
	return &AuthzStore{db: db}
}

// --- authz.PermissionSetLoader ---

func (s *AuthzStore) Agent(ctx context.Context, agentID uuid.UUID) (*authz.Agent, error) {
	var a authz.Agent
	var roleID, modelID *uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role_id, model_id FROM agents WHERE id = $1`, agentID,
	).Scan(&a.ID, &roleID, &modelID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("authz: agent %s not found", agentID)
	}
	if err != nil {
		return nil, err
	}
	a.RoleID = derefUUID(roleID)
	a.ModelID = derefUUID(modelID)
	return &a, nil
}

func (s *AuthzStore) User(ctx context.Context, userID string) (*authz.User, error) {
	var u authz.User
	var roleID *uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role_id FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &roleID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("authz: user %s not found", userID)
	}
	if err != nil {
		return nil, err
	}
	u.RoleID = derefUUID(roleID)
	return &u, nil
}

func (s *AuthzStore) PermissionSetByRole(ctx context.Context, roleID uuid.UUID) (*authz.PermissionSet, error) {
	var psID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT permission_set_id FROM roles WHERE id = $1`, roleID,
	).Scan(&psID)
	if err != nil {
		return nil, err
	}
	return s.PermissionSetByID(ctx, psID)
}

func (s *AuthzStore) PermissionSetByID(ctx context.Context, id uuid.UUID) (*authz.PermissionSet, error) {
	ps := &authz.PermissionSet{
		ID:                      id,
		Grants:                  make(map[protocol.ResourceCategory][]authz.Grant),
		DefaultGrantID:          make(map[protocol.ResourceCategory]uuid.UUID),
		ClearanceUserWhitelist:  make(map[string]bool),
		ClearanceAgentWhitelist: make(map[string]bool),
	}

	var defaultClearance int
	var flagsJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT default_clearance, flags, version, created_at, updated_at
		 FROM permission_sets WHERE id = $1`, id,
	).Scan(&defaultClearance, &flagsJSON, &ps.Version, &ps.CreatedAt, &ps.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ps.DefaultClearance = authz.Clearance(defaultClearance)
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &ps.Flags); err != nil {
			return nil, fmt.Errorf("authz: unmarshal flags: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, resource_id, clearance, is_default
		 FROM grants WHERE permission_set_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var g authz.Grant
		var category string
		var clearance int
		var isDefault bool
		if err := rows.Scan(&g.ID, &category, &g.ResourceID, &clearance, &isDefault); err != nil {
			return nil, err
		}
		g.Clearance = authz.Clearance(clearance)
		cat := protocol.ResourceCategory(category)
		ps.Grants[cat] = append(ps.Grants[cat], g)
		if isDefault {
			ps.DefaultGrantID[cat] = g.ID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	userWL, err := s.scanStringArray(ctx, `SELECT user_id FROM permission_set_user_whitelist WHERE permission_set_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for _, u := range userWL {
		ps.ClearanceUserWhitelist[u] = true
	}
	agentWL, err := s.scanStringArray(ctx, `SELECT agent_id FROM permission_set_agent_whitelist WHERE permission_set_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for _, a := range agentWL {
		ps.ClearanceAgentWhitelist[a] = true
	}

	return ps, nil
}

func (s *AuthzStore) scanStringArray(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- authz.ChannelLoader ---

func (s *AuthzStore) Channel(ctx context.Context, id uuid.UUID) (*authz.Channel, error) {
	var c authz.Channel
	var defaultAgentID, contextID, permissionSetID *uuid.UUID
	var allowedIDs pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, default_agent_id, context_id, permission_set_id, allowed_agent_ids, disable_chat_header, created_at
		 FROM channels WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &defaultAgentID, &contextID, &permissionSetID, &allowedIDs, &c.DisableChatHeader, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.DefaultAgentID = derefUUID(defaultAgentID)
	c.ContextID = derefUUID(contextID)
	c.PermissionSetID = derefUUID(permissionSetID)
	c.AllowedAgentIDs = toUUIDSet(allowedIDs)
	return &c, nil
}

func (s *AuthzStore) ChannelContext(ctx context.Context, id uuid.UUID) (*authz.ChannelContext, error) {
	var cc authz.ChannelContext
	var defaultAgentID, permissionSetID *uuid.UUID
	var allowedIDs pq.StringArray
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, default_agent_id, permission_set_id, allowed_agent_ids, disable_chat_header, created_at
		 FROM channel_contexts WHERE id = $1`, id,
	).Scan(&cc.ID, &cc.Name, &defaultAgentID, &permissionSetID, &allowedIDs, &cc.DisableChatHeader, &cc.CreatedAt)
	if err != nil {
		return nil, err
	}
	cc.DefaultAgentID = derefUUID(defaultAgentID)
	cc.PermissionSetID = derefUUID(permissionSetID)
	cc.AllowedAgentIDs = toUUIDSet(allowedIDs)
	return &cc, nil
}

func (s *AuthzStore) RoleByAgent(ctx context.Context, agentID uuid.UUID) (*authz.Role, error) {
	var r authz.Role
	var permissionSetID *uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.name, r.permission_set_id
		 FROM roles r JOIN agents a ON a.role_id = r.id
		 WHERE a.id = $1`, agentID,
	).Scan(&r.ID, &r.Name, &permissionSetID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.PermissionSetID = derefUUID(permissionSetID)
	return &r, nil
}

func toUUIDSet(ids pq.StringArray) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, raw := range ids {
		if id, err := uuid.Parse(raw); err == nil {
			set[id] = true
		}
	}
	return set
}

// --- Grant mutation (Permission Store, §3) ---

// InvariantViolation marks a grant mutation the spec says must never be
// allowed to succeed: a Grant whose resourceId equals the AllResources
// sentinel is immutable once persisted, so the persistence layer rejects
// any update or delete touching it.
type InvariantViolation struct {
	msg string
}

func (e *InvariantViolation) Error() string { return e.msg }

func newInvariantViolation(format string, args ...any) error {
	return &InvariantViolation{msg: fmt.Sprintf(format, args...)}
}

// checkGrantMutable rejects an update or delete touching a wildcard grant.
// existing is nil when the row doesn't exist at all, a distinct condition
// callers surface separately from the invariant violation.
func checkGrantMutable(existing *authz.Grant) error {
	if existing != nil && existing.IsWildcard() {
		return newInvariantViolation("grant %s has resourceId=AllResources and is immutable", existing.ID)
	}
	return nil
}

// grantByID loads just enough of a grant row (id, resource_id, clearance)
// to run the mutability check and to apply the mutation.
func (s *AuthzStore) grantByID(ctx context.Context, grantID uuid.UUID) (*authz.Grant, error) {
	var g authz.Grant
	var clearance int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, resource_id, clearance FROM grants WHERE id = $1`, grantID,
	).Scan(&g.ID, &g.ResourceID, &clearance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.Clearance = authz.Clearance(clearance)
	return &g, nil
}

// InsertGrant adds a new grant row under a permission set. The immutability
// invariant only blocks mutating a wildcard grant once it exists — creating
// one, including with resourceId=AllResources, is always allowed.
func (s *AuthzStore) InsertGrant(ctx context.Context, permissionSetID uuid.UUID, category protocol.ResourceCategory, grant authz.Grant, isDefault bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (id, permission_set_id, category, resource_id, clearance, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		grant.ID, permissionSetID, string(category), grant.ResourceID, int(grant.Clearance), isDefault,
	)
	return err
}

// UpdateGrantClearance changes a grant's clearance level, returning
// InvariantViolation if the grant is the AllResources wildcard (§3 scenario
// 8: "Attempt to update its clearance → persistence layer raises
// InvariantViolation; row unchanged").
func (s *AuthzStore) UpdateGrantClearance(ctx context.Context, grantID uuid.UUID, clearance authz.Clearance) error {
	existing, err := s.grantByID(ctx, grantID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("authz: grant %s not found", grantID)
	}
	if err := checkGrantMutable(existing); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE grants SET clearance = $1 WHERE id = $2`, int(clearance), grantID)
	return err
}

// DeleteGrant removes a grant row, returning InvariantViolation if the
// grant is the AllResources wildcard (§3).
func (s *AuthzStore) DeleteGrant(ctx context.Context, grantID uuid.UUID) error {
	existing, err := s.grantByID(ctx, grantID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("authz: grant %s not found", grantID)
	}
	if err := checkGrantMutable(existing); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM grants WHERE id = $1`, grantID)
	return err
}
