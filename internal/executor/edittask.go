package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

// editTaskPayload names the optional fields an EditTask job may update
// (§4.5: "updates name, repeat interval, max retries").
type editTaskPayload struct {
	Name           *string `json:"name,omitempty"`
	RepeatInterval *string `json:"repeatInterval,omitempty"` // parsed with time.ParseDuration
	MaxRetries     *int    `json:"maxRetries,omitempty"`
}

// EditTaskHandler implements §4.5's Edit task (and, for the global-flag
// EditAnyTask variant, is reused unchanged — authorization, not dispatch,
// distinguishes the two action kinds).
type EditTaskHandler struct {
	tasks TaskStore
}

func NewEditTaskHandler(tasks TaskStore) *EditTaskHandler {
	return &EditTaskHandler{tasks: tasks}
}

func (h *EditTaskHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	task, err := h.tasks.GetTask(ctx, j.ResourceID)
	if err != nil || task == nil {
		return "", fmt.Errorf("edit-task: resolve target task: %w", err)
	}

	var payload editTaskPayload
	if err := json.Unmarshal([]byte(j.ScriptText), &payload); err != nil {
		return "", fmt.Errorf("edit-task: parse payload: %w", err)
	}

	var changes []string
	if payload.Name != nil && *payload.Name != task.Name {
		changes = append(changes, fmt.Sprintf("name: %q -> %q", task.Name, *payload.Name))
		task.Name = *payload.Name
	}
	if payload.RepeatInterval != nil {
		d, err := time.ParseDuration(*payload.RepeatInterval)
		if err != nil {
			return "", fmt.Errorf("edit-task: invalid repeatInterval: %w", err)
		}
		changes = append(changes, fmt.Sprintf("repeatInterval: %s -> %s", task.RepeatInterval, d))
		task.RepeatInterval = d
	}
	if payload.MaxRetries != nil && *payload.MaxRetries != task.MaxRetries {
		changes = append(changes, fmt.Sprintf("maxRetries: %d -> %d", task.MaxRetries, *payload.MaxRetries))
		task.MaxRetries = *payload.MaxRetries
	}

	if len(changes) == 0 {
		return "no changes requested", nil
	}
	if err := h.tasks.UpdateTask(ctx, task); err != nil {
		return "", fmt.Errorf("edit-task: persist: %w", err)
	}
	return strings.Join(changes, "; "), nil
}
