package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AgentResolver implements job.AgentResolver (§4.4 step 1): the channel's
// default agent, or an explicit override that must be among the channel's
// allowed substitute agents.
type AgentResolver struct {
	db *sql.DB
}

func NewAgentResolver(db *sql.DB) *AgentResolver {
	return &AgentResolver{db: db}
}

func (r *AgentResolver) ResolveAgent(ctx context.Context, channelID, override uuid.UUID) (uuid.UUID, error) {
	var defaultAgentID *uuid.UUID
	var allowed pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT default_agent_id, allowed_agent_ids FROM channels WHERE id = $1`, channelID,
	).Scan(&defaultAgentID, &allowed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve agent: channel %s: %w", channelID, err)
	}

	if override == uuid.Nil {
		if defaultAgentID == nil {
			return uuid.Nil, fmt.Errorf("resolve agent: channel %s has no default agent", channelID)
		}
		return *defaultAgentID, nil
	}

	for _, raw := range allowed {
		if id, err := uuid.Parse(raw); err == nil && id == override {
			return override, nil
		}
	}
	return uuid.Nil, fmt.Errorf("resolve agent: %s is not an allowed substitute on channel %s", override, channelID)
}
