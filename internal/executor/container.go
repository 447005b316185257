package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

// createContainerPayload is the parsed shape of a CreateContainer job's
// ScriptText (§4.5: "parses {name, path, description}").
type createContainerPayload struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// CreateContainerHandler implements §4.5's Create container: registers a new
// sandbox through the external provisioner, then persists the row.
type CreateContainerHandler struct {
	containers  ContainerStore
	provisioner Provisioner
}

func NewCreateContainerHandler(containers ContainerStore, provisioner Provisioner) *CreateContainerHandler {
	return &CreateContainerHandler{containers: containers, provisioner: provisioner}
}

func (h *CreateContainerHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	var payload createContainerPayload
	if err := json.Unmarshal([]byte(j.ScriptText), &payload); err != nil {
		return "", fmt.Errorf("create-container: parse payload: %w", err)
	}
	if payload.Name == "" || payload.Path == "" {
		return "", fmt.Errorf("create-container: name and path are required")
	}

	if err := h.provisioner.Register(ctx, payload.Name, payload.Path); err != nil {
		return "", fmt.Errorf("create-container: register: %w", err)
	}

	container := &Container{
		ID:          uuid.New(),
		Name:        payload.Name,
		Kind:        protocol.ContainerGeneral,
		RootPath:    payload.Path,
		Description: payload.Description,
	}
	if err := h.containers.CreateContainer(ctx, container); err != nil {
		return "", fmt.Errorf("create-container: persist: %w", err)
	}
	return fmt.Sprintf("registered container %s at %s", container.Name, container.RootPath), nil
}
