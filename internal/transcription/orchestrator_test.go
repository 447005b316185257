package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

type fakeJobStore struct {
	jobs map[uuid.UUID]*job.Job
}

func newFakeJobStore(jobs ...*job.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: make(map[uuid.UUID]*job.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) Create(_ context.Context, j *job.Job) error {
	s.jobs[j.ID] = j
	return nil
}
func (s *fakeJobStore) Get(_ context.Context, id uuid.UUID) (*job.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return j, nil
}
func (s *fakeJobStore) Update(_ context.Context, j *job.Job) error {
	s.jobs[j.ID] = j
	return nil
}
func (s *fakeJobStore) ListStuckTranscriptions(_ context.Context) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range s.jobs {
		if j.ActionKind.IsTranscription() && (j.Status == job.StatusQueued || j.Status == job.StatusExecuting) {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeDriver struct {
	chunks [][]byte
}

func (d *fakeDriver) ListDevices(_ context.Context) ([]Device, error) { return nil, nil }

func (d *fakeDriver) Capture(ctx context.Context, _ string, _ time.Duration, onChunk func([]byte, int) error) error {
	for i, c := range d.chunks {
		if err := onChunk(c, i); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeSTT struct {
	err error
}

func (s *fakeSTT) Transcribe(_ context.Context, _ uuid.UUID, wav []byte, _ string) (STTResult, error) {
	if s.err != nil {
		return STTResult{}, s.err
	}
	return STTResult{
		Duration: time.Second,
		Segments: []STTSegment{{Text: string(wav), Start: 0, End: time.Second}},
	}, nil
}

type fakeKeys struct{}

func (fakeKeys) ResolveAPIKey(_ context.Context, _ uuid.UUID) (string, error) { return "key", nil }

func TestStart_RejectsSecondStartOnSameJob(t *testing.T) {
	j := &job.Job{ID: uuid.New(), Status: job.StatusExecuting}
	store := newFakeJobStore(j)
	o := NewOrchestrator(store, &fakeDriver{}, &fakeSTT{}, fakeKeys{})

	if err := o.Start(context.Background(), j.ID, uuid.New(), "mic0", "en"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer o.Stop(j.ID)

	if err := o.Start(context.Background(), j.ID, uuid.New(), "mic0", "en"); err == nil {
		t.Fatalf("expected second Start on the same job to be rejected")
	}
}

func TestOrchestrator_AppendsSegmentsAndBroadcasts(t *testing.T) {
	j := &job.Job{ID: uuid.New(), Status: job.StatusExecuting}
	store := newFakeJobStore(j)
	driver := &fakeDriver{chunks: [][]byte{[]byte("hello"), []byte("world")}}
	o := NewOrchestrator(store, driver, &fakeSTT{}, fakeKeys{})

	if err := o.Start(context.Background(), j.ID, uuid.New(), "mic0", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, ok := o.Subscribe(j.ID)
	if !ok {
		t.Fatalf("expected a running job to be subscribable")
	}

	sub := make(chan Segment, 8)
	go func() {
		for seg := range ch {
			sub <- seg
		}
		close(sub)
	}()

	time.Sleep(50 * time.Millisecond)
	o.Stop(j.ID)

	deadline := time.After(2 * time.Second)
	count := 0
loop:
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				break loop
			}
			count++
		case <-deadline:
			break loop
		}
	}

	stored, err := store.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for i := 1; i < len(stored.TranscriptionSegments); i++ {
		if stored.TranscriptionSegments[i].StartTime < stored.TranscriptionSegments[i-1].StartTime {
			t.Fatalf("expected non-decreasing StartTime across segments")
		}
	}
}

func TestOrchestrator_FiveConsecutiveFailuresAbortsJob(t *testing.T) {
	chunks := make([][]byte, 6)
	for i := range chunks {
		chunks[i] = []byte("chunk")
	}
	j := &job.Job{ID: uuid.New(), Status: job.StatusExecuting}
	store := newFakeJobStore(j)
	driver := &fakeDriver{chunks: chunks}
	o := NewOrchestrator(store, driver, &fakeSTT{err: errors.New("stt down")}, fakeKeys{})

	if err := o.Start(context.Background(), j.ID, uuid.New(), "mic0", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stored, _ := store.Get(context.Background(), j.ID)
		if stored.Status == job.StatusFailed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected job to be marked Failed after 5 consecutive chunk failures")
}

func TestReconcile_CancelsStuckTranscriptionJobs(t *testing.T) {
	stuck := &job.Job{ID: uuid.New(), Status: job.StatusExecuting, ActionKind: "TranscribeFromAudioDevice"}
	notStuck := &job.Job{ID: uuid.New(), Status: job.StatusCompleted, ActionKind: "TranscribeFromAudioDevice"}
	store := newFakeJobStore(stuck, notStuck)
	o := NewOrchestrator(store, &fakeDriver{}, &fakeSTT{}, fakeKeys{})

	if err := o.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got, _ := store.Get(context.Background(), stuck.ID)
	if got.Status != job.StatusCancelled {
		t.Fatalf("expected stuck job to be Cancelled, got %v", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected CompletedAt to be set")
	}

	other, _ := store.Get(context.Background(), notStuck.ID)
	if other.Status != job.StatusCompleted {
		t.Fatalf("expected completed job to be left alone, got %v", other.Status)
	}
}
