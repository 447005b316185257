package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// Container is a registered sandbox or general-purpose resource a job's
// ResourceID may point at (§4.5 Safe-DSL/Create-container).
type Container struct {
	ID          uuid.UUID
	Name        string
	Kind        protocol.ContainerKind
	RootPath    string
	Description string
	CreatedAt   time.Time
}

// SystemUser is the resource a dangerous-shell job's ResourceID names: the
// identity (and working directory) the spawned process runs as.
type SystemUser struct {
	ID               uuid.UUID
	Name             string
	WorkingDirectory string
	SandboxRoot      string
}

// ContainerStore persists Container rows.
type ContainerStore interface {
	GetContainer(ctx context.Context, id uuid.UUID) (*Container, error)
	CreateContainer(ctx context.Context, c *Container) error
}

// SystemUserStore resolves the system-user resource referenced by a
// dangerous-shell job.
type SystemUserStore interface {
	GetSystemUser(ctx context.Context, id uuid.UUID) (*SystemUser, error)
}

// AgentRecord is the subset of an Agent's fields the executors mutate.
type AgentRecord struct {
	ID           uuid.UUID
	Name         string
	ModelID      uuid.UUID
	SystemPrompt string
	RoleID       uuid.UUID
}

// AgentStore creates and updates agents (§4.5 Create sub-agent, Manage agent).
type AgentStore interface {
	CreateAgent(ctx context.Context, a *AgentRecord) error
	GetAgent(ctx context.Context, id uuid.UUID) (*AgentRecord, error)
	UpdateAgent(ctx context.Context, a *AgentRecord) error
}

// TaskRecord is the subset of a scheduled task's fields Edit task mutates.
type TaskRecord struct {
	ID            uuid.UUID
	Name          string
	RepeatInterval time.Duration
	MaxRetries    int
}

// TaskStore updates scheduled tasks (§4.5 Edit task).
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*TaskRecord, error)
	UpdateTask(ctx context.Context, t *TaskRecord) error
}

// SkillStore resolves the stored text of a skill resource.
type SkillStore interface {
	GetSkillText(ctx context.Context, id uuid.UUID) (string, error)
}

// Provisioner registers a new sandbox with the external container driver
// (§4.5 Create container, §6 Sandbox registrar).
type Provisioner interface {
	Register(ctx context.Context, sandboxName, rootPath string) error
}
