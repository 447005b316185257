package executor

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

// AccessSkillHandler implements §4.5's Access skill: returns the stored
// skill text verbatim as resultData.
type AccessSkillHandler struct {
	skills SkillStore
}

func NewAccessSkillHandler(skills SkillStore) *AccessSkillHandler {
	return &AccessSkillHandler{skills: skills}
}

func (h *AccessSkillHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	text, err := h.skills.GetSkillText(ctx, j.ResourceID)
	if err != nil {
		return "", fmt.Errorf("access-skill: %w", err)
	}
	return text, nil
}
