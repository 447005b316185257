package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/executor"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// ContainerStore implements executor.ContainerStore.
type ContainerStore struct {
	db *sql.DB
}

func NewContainerStore(db *sql.DB) *ContainerStore { return &ContainerStore{db: db} }

func (s *ContainerStore) GetContainer(ctx context.Context, id uuid.UUID) (*executor.Container, error) {
	var c executor.Container
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, root_path, description, created_at FROM containers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &kind, &c.RootPath, &c.Description, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = protocol.ContainerKind(kind)
	return &c, nil
}

func (s *ContainerStore) CreateContainer(ctx context.Context, c *executor.Container) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO containers (id, name, kind, root_path, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, string(c.Kind), c.RootPath, c.Description, c.CreatedAt,
	)
	return err
}

// SystemUserStore implements executor.SystemUserStore.
type SystemUserStore struct {
	db *sql.DB
}

func NewSystemUserStore(db *sql.DB) *SystemUserStore { return &SystemUserStore{db: db} }

func (s *SystemUserStore) GetSystemUser(ctx context.Context, id uuid.UUID) (*executor.SystemUser, error) {
	var u executor.SystemUser
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, working_directory, sandbox_root FROM system_users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.WorkingDirectory, &u.SandboxRoot)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AgentStore implements executor.AgentStore — create/get/update for the
// Create-subagent and Manage-agent actions (§4.5). Kept separate from
// AuthzStore's read-only Agent() lookup: this one mutates rows, the other
// is a pure clearance-evaluation input.
type AgentStore struct {
	db *sql.DB
}

func NewExecutorAgentStore(db *sql.DB) *AgentStore { return &AgentStore{db: db} }

func (s *AgentStore) CreateAgent(ctx context.Context, a *executor.AgentRecord) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, model_id, system_prompt, role_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Name, nilJobUUID(a.ModelID), a.SystemPrompt, nilJobUUID(a.RoleID),
	)
	return err
}

func (s *AgentStore) GetAgent(ctx context.Context, id uuid.UUID) (*executor.AgentRecord, error) {
	var a executor.AgentRecord
	var modelID, roleID *uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, model_id, system_prompt, role_id FROM agents WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &modelID, &a.SystemPrompt, &roleID)
	if err != nil {
		return nil, err
	}
	a.ModelID = derefUUID(modelID)
	a.RoleID = derefUUID(roleID)
	return &a, nil
}

func (s *AgentStore) UpdateAgent(ctx context.Context, a *executor.AgentRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name = $1, model_id = $2, system_prompt = $3, role_id = $4 WHERE id = $5`,
		a.Name, nilJobUUID(a.ModelID), a.SystemPrompt, nilJobUUID(a.RoleID), a.ID,
	)
	return err
}

// TaskStore implements executor.TaskStore, adapted from the teacher's
// team-task update-map convention (store/pg's former teams_tasks.go) to the
// simpler RepeatInterval/MaxRetries shape Edit-task mutates (§4.5).
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore { return &TaskStore{db: db} }

func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*executor.TaskRecord, error) {
	var t executor.TaskRecord
	var repeatSeconds int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, repeat_interval_seconds, max_retries FROM tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &repeatSeconds, &t.MaxRetries)
	if err != nil {
		return nil, err
	}
	t.RepeatInterval = time.Duration(repeatSeconds) * time.Second
	return &t, nil
}

func (s *TaskStore) UpdateTask(ctx context.Context, t *executor.TaskRecord) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name = $1, repeat_interval_seconds = $2, max_retries = $3 WHERE id = $4`,
		t.Name, int64(t.RepeatInterval/time.Second), t.MaxRetries, t.ID,
	)
	return err
}

// SkillStore implements executor.SkillStore.
type SkillStore struct {
	db *sql.DB
}

func NewSkillStore(db *sql.DB) *SkillStore { return &SkillStore{db: db} }

func (s *SkillStore) GetSkillText(ctx context.Context, id uuid.UUID) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM skills WHERE id = $1`, id).Scan(&text)
	if err != nil {
		return "", err
	}
	return text, nil
}

// InfoStore implements executor.InfoStore, grounded on the resource-registry
// shape of the teacher's MCP server store (a named, registerable external
// resource an agent may be granted access to) — trimmed here to the single
// id/name/text record shape this module's info-store actions need.
type InfoStore struct {
	db *sql.DB
}

func NewInfoStore(db *sql.DB) *InfoStore { return &InfoStore{db: db} }

func (s *InfoStore) GetInfoStore(ctx context.Context, id uuid.UUID) (*executor.InfoStoreRecord, error) {
	var r executor.InfoStoreRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, text FROM info_stores WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Text)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *InfoStore) RegisterInfoStore(ctx context.Context, r *executor.InfoStoreRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO info_stores (id, name, text, created_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Name, r.Text, time.Now(),
	)
	return err
}

// SandboxProvisioner implements executor.Provisioner by recording the
// sandbox registration row. It performs no filesystem or process setup and
// does not call internal/sandbox; the Create-container handler calls
// Register here and then persists the container row.
type SandboxProvisioner struct {
	db *sql.DB
}

func NewSandboxProvisioner(db *sql.DB) *SandboxProvisioner { return &SandboxProvisioner{db: db} }

func (p *SandboxProvisioner) Register(ctx context.Context, sandboxName, rootPath string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO sandbox_registrations (id, name, root_path, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO UPDATE SET root_path = EXCLUDED.root_path`,
		uuid.New(), sandboxName, rootPath, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("register sandbox %s: %w", sandboxName, err)
	}
	return nil
}
