package pg

import "database/sql"

// Stores bundles every Postgres-backed implementation the application wires
// into its domain packages at startup (§2 cmd/serve). Each field satisfies a
// consumer-defined interface declared in its own package; this struct exists
// only to hand them to cmd/ as one unit, the way the teacher's factory.go did
// for its own (larger) set of stores.
type Stores struct {
	Authz           *AuthzStore
	Jobs            *JobStore
	AgentResolver   *AgentResolver
	Containers      *ContainerStore
	SystemUsers     *SystemUserStore
	Agents          *AgentStore
	Tasks           *TaskStore
	Skills          *SkillStore
	InfoStores      *InfoStore
	Provisioner     *SandboxProvisioner
	ChatHistory     *ChatHistory
	SandboxResolver *SandboxResolver
}

// NewStores wires every store implementation against a single shared
// connection pool.
func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Authz:           NewAuthzStore(db),
		Jobs:            NewJobStore(db),
		AgentResolver:   NewAgentResolver(db),
		Containers:      NewContainerStore(db),
		SystemUsers:     NewSystemUserStore(db),
		Agents:          NewExecutorAgentStore(db),
		Tasks:           NewTaskStore(db),
		Skills:          NewSkillStore(db),
		InfoStores:      NewInfoStore(db),
		Provisioner:     NewSandboxProvisioner(db),
		ChatHistory:     NewChatHistory(db),
		SandboxResolver: NewSandboxResolver(db),
	}
}
