package file

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

func openTestDB(t *testing.T) *jobTestDB {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &jobTestDB{store: NewJobStore(db)}
}

type jobTestDB struct {
	store *JobStore
}

func Test_JobStore_CreateAndGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	td := openTestDB(t)

	j := &job.Job{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ChannelID:  uuid.New(),
		CallerUser: "alice",
		ActionKind: protocol.ActionExecuteAsSafeShell,
		ResourceID: uuid.New(),
		Status:     job.StatusQueued,
		ScriptText: "ls -la",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	j.AppendLog(j.CreatedAt, job.SeverityInfo, "submitted")

	if err := td.store.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := td.store.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CallerUser != "alice" || got.ScriptText != "ls -la" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.LogEntries) != 1 || got.LogEntries[0].Message != "submitted" {
		t.Fatalf("log entries not persisted: %+v", got.LogEntries)
	}
}

func Test_JobStore_UpdateChangesStatus(t *testing.T) {
	ctx := context.Background()
	td := openTestDB(t)

	j := &job.Job{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ChannelID:  uuid.New(),
		ActionKind: protocol.ActionAccessContainer,
		Status:     job.StatusQueued,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := td.store.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	j.Status = job.StatusCompleted
	j.ResultData = "done"
	now := time.Now().UTC().Truncate(time.Millisecond)
	j.CompletedAt = &now
	if err := td.store.Update(ctx, j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := td.store.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != job.StatusCompleted || got.ResultData != "done" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
}

func Test_JobStore_ListStuckTranscriptionsFiltersByKindAndStatus(t *testing.T) {
	ctx := context.Background()
	td := openTestDB(t)

	stuck := &job.Job{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ChannelID:  uuid.New(),
		ActionKind: protocol.ActionTranscribeFromAudioDevice,
		Status:     job.StatusExecuting,
		CreatedAt:  time.Now().UTC(),
	}
	done := &job.Job{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ChannelID:  uuid.New(),
		ActionKind: protocol.ActionTranscribeFromAudioDevice,
		Status:     job.StatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
	other := &job.Job{
		ID:         uuid.New(),
		AgentID:    uuid.New(),
		ChannelID:  uuid.New(),
		ActionKind: protocol.ActionExecuteAsSafeShell,
		Status:     job.StatusExecuting,
		CreatedAt:  time.Now().UTC(),
	}
	for _, j := range []*job.Job{stuck, done, other} {
		if err := td.store.Create(ctx, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := td.store.ListStuckTranscriptions(ctx)
	if err != nil {
		t.Fatalf("ListStuckTranscriptions: %v", err)
	}
	if len(got) != 1 || got[0].ID != stuck.ID {
		t.Fatalf("expected only the stuck transcription job, got %+v", got)
	}
}
