package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SandboxResolver implements chatloop.SandboxResolver by looking a container
// up by its registered name — the chat loop's tool-call translator falls
// back to this when a tool call names a sandbox instead of an id (§7).
type SandboxResolver struct {
	db *sql.DB
}

func NewSandboxResolver(db *sql.DB) *SandboxResolver {
	return &SandboxResolver{db: db}
}

func (r *SandboxResolver) ResolveContainerByName(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM containers WHERE name = $1`, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("sandbox resolver: no container named %q", name)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
