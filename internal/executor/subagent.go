package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

// createSubAgentPayload is the parsed shape of a CreateSubAgent job's
// ScriptText field (§4.5: "parses a {name, modelId, systemPrompt} payload").
type createSubAgentPayload struct {
	Name         string    `json:"name"`
	ModelID      uuid.UUID `json:"modelId"`
	SystemPrompt string    `json:"systemPrompt"`
}

// CreateSubAgentHandler implements §4.5's Create sub-agent.
type CreateSubAgentHandler struct {
	agents AgentStore
}

func NewCreateSubAgentHandler(agents AgentStore) *CreateSubAgentHandler {
	return &CreateSubAgentHandler{agents: agents}
}

func (h *CreateSubAgentHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	var payload createSubAgentPayload
	if err := json.Unmarshal([]byte(j.ScriptText), &payload); err != nil {
		return "", fmt.Errorf("create-subagent: parse payload: %w", err)
	}
	if payload.Name == "" {
		return "", fmt.Errorf("create-subagent: name is required")
	}

	agent := &AgentRecord{
		ID:           uuid.New(),
		Name:         payload.Name,
		ModelID:      payload.ModelID,
		SystemPrompt: payload.SystemPrompt,
	}
	if err := h.agents.CreateAgent(ctx, agent); err != nil {
		return "", fmt.Errorf("create-subagent: persist: %w", err)
	}
	return fmt.Sprintf("created sub-agent %s (%s)", agent.Name, agent.ID), nil
}
