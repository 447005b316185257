package job

import (
	"context"

	"github.com/google/uuid"
)

// Store persists Jobs and their append-only LogEntries/TranscriptionSegments.
// Implemented by internal/store/pg; defined here (the consumer) rather than
// in internal/store to keep job's domain logic free of a dependency on the
// storage package.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, j *Job) error

	// ListStuckTranscriptions returns every job whose Status is Queued or
	// Executing and whose ActionKind is a transcription kind, for restart
	// reconciliation (§4.6).
	ListStuckTranscriptions(ctx context.Context) ([]*Job, error)
}
