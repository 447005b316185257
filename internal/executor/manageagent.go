package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

// manageAgentPayload names the optional fields a ManageAgent job may update
// (§4.5: "updates the target agent's name, system prompt, or model").
type manageAgentPayload struct {
	Name         *string `json:"name,omitempty"`
	SystemPrompt *string `json:"systemPrompt,omitempty"`
	ModelID      *string `json:"modelId,omitempty"`
}

// ManageAgentHandler implements §4.5's Manage agent.
type ManageAgentHandler struct {
	agents AgentStore
}

func NewManageAgentHandler(agents AgentStore) *ManageAgentHandler {
	return &ManageAgentHandler{agents: agents}
}

func (h *ManageAgentHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	agent, err := h.agents.GetAgent(ctx, j.ResourceID)
	if err != nil || agent == nil {
		return "", fmt.Errorf("manage-agent: resolve target agent: %w", err)
	}

	var payload manageAgentPayload
	if err := json.Unmarshal([]byte(j.ScriptText), &payload); err != nil {
		return "", fmt.Errorf("manage-agent: parse payload: %w", err)
	}

	var changes []string
	if payload.Name != nil && *payload.Name != agent.Name {
		changes = append(changes, fmt.Sprintf("name: %q -> %q", agent.Name, *payload.Name))
		agent.Name = *payload.Name
	}
	if payload.SystemPrompt != nil && *payload.SystemPrompt != agent.SystemPrompt {
		changes = append(changes, "systemPrompt updated")
		agent.SystemPrompt = *payload.SystemPrompt
	}
	if payload.ModelID != nil {
		modelID, err := uuid.Parse(*payload.ModelID)
		if err != nil {
			return "", fmt.Errorf("manage-agent: invalid modelId: %w", err)
		}
		if modelID != agent.ModelID {
			changes = append(changes, fmt.Sprintf("modelId: %s -> %s", agent.ModelID, modelID))
			agent.ModelID = modelID
		}
	}

	if len(changes) == 0 {
		return "no changes requested", nil
	}
	if err := h.agents.UpdateAgent(ctx, agent); err != nil {
		return "", fmt.Errorf("manage-agent: persist: %w", err)
	}
	return strings.Join(changes, "; "), nil
}
