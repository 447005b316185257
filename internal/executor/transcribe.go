package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

// TranscriptionStarter starts the background orchestrator task for a job
// (internal/transcription.Orchestrator.Start).
type TranscriptionStarter interface {
	Start(ctx context.Context, jobID, modelID uuid.UUID, deviceID, language string) error
}

// TranscribeHandler implements §4.5's hand-off to §4.6: it starts the
// orchestrator's background task and returns immediately. The job stays in
// Executing; its terminal transition is driven later by the orchestrator
// (failure, StopTranscription, or Cancel), not by this handler's return.
type TranscribeHandler struct {
	orchestrator TranscriptionStarter
}

func NewTranscribeHandler(orchestrator TranscriptionStarter) *TranscribeHandler {
	return &TranscribeHandler{orchestrator: orchestrator}
}

func (h *TranscribeHandler) Execute(ctx context.Context, j *job.Job) (string, error) {
	deviceID := j.TranscriptionDeviceID
	if err := h.orchestrator.Start(ctx, j.ID, j.TranscriptionModelID, deviceID, j.Language); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return "", nil
}
