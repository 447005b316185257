package transcription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/job"
)

const (
	chunkDuration       = 3 * time.Second
	maxConsecutiveFails = 5
)

// chunk is one producer-enqueued unit of audio awaiting sequential
// processing by the single consumer goroutine (§4.6 ordering invariant).
type chunk struct {
	wav   []byte
	index int
}

// runningJob tracks the background task for one Executing transcription Job.
type runningJob struct {
	cancel      context.CancelFunc
	queue       chan chunk
	broadcaster *broadcaster
	done        chan struct{}
}

// Orchestrator implements §4.6: Start/Stop/Subscribe/SegmentsSince, and
// restart reconciliation of stuck jobs.
type Orchestrator struct {
	store  job.Store
	driver AudioDriver
	stt    STTClient
	keys   APIKeyResolver

	mu   sync.Mutex // guards running; membership only, not the hot path
	running map[uuid.UUID]*runningJob
}

func NewOrchestrator(store job.Store, driver AudioDriver, stt STTClient, keys APIKeyResolver) *Orchestrator {
	return &Orchestrator{
		store:   store,
		driver:  driver,
		stt:     stt,
		keys:    keys,
		running: make(map[uuid.UUID]*runningJob),
	}
}

// Start implements §4.6 Start: a second Start on the same job returns an
// error.
func (o *Orchestrator) Start(ctx context.Context, jobID, modelID uuid.UUID, deviceID, language string) error {
	o.mu.Lock()
	if _, exists := o.running[jobID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("transcription: job %s is already running", jobID)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	rj := &runningJob{
		cancel:      cancel,
		queue:       make(chan chunk, 64),
		broadcaster: newBroadcaster(),
		done:        make(chan struct{}),
	}
	o.running[jobID] = rj
	o.mu.Unlock()

	if _, err := o.keys.ResolveAPIKey(ctx, modelID); err != nil {
		o.cleanup(jobID)
		return fmt.Errorf("transcription: resolve api key: %w", err)
	}

	go o.consume(runCtx, jobID, modelID, language, rj)
	go o.produce(runCtx, jobID, deviceID, rj)

	return nil
}

// produce runs the audio-capture driver, enqueuing chunks for the single
// consumer. Cancellation exceptions are not failures (§4.6).
func (o *Orchestrator) produce(ctx context.Context, jobID uuid.UUID, deviceID string, rj *runningJob) {
	err := o.driver.Capture(ctx, deviceID, chunkDuration, func(wav []byte, idx int) error {
		select {
		case rj.queue <- chunk{wav: wav, index: idx}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil && ctx.Err() == nil {
		o.fail(jobID, rj, err)
	}
	close(rj.queue)
}

// consume is the single reader draining rj.queue, invoking the STT client
// sequentially. consecutiveErrors and accumulated are closed over here
// and touched only on this goroutine — safe without locking (§4.6).
func (o *Orchestrator) consume(ctx context.Context, jobID, modelID uuid.UUID, language string, rj *runningJob) {
	defer close(rj.done)

	consecutiveErrors := 0
	var accumulated time.Duration

	for c := range rj.queue {
		result, err := o.stt.Transcribe(ctx, modelID, c.wav, language)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveFails {
				o.fail(jobID, rj, fmt.Errorf("transcription: %d consecutive chunk failures: %w", consecutiveErrors, err))
				return
			}
			continue
		}
		consecutiveErrors = 0

		for _, seg := range result.Segments {
			start := accumulated + seg.Start
			end := accumulated + seg.End
			o.appendSegment(ctx, jobID, seg.Text, start, end, seg.Confidence)
			rj.broadcaster.publish(Segment{JobID: jobID, Text: seg.Text, Start: start, End: end})
		}
		accumulated += result.Duration
	}
}

func (o *Orchestrator) appendSegment(ctx context.Context, jobID uuid.UUID, text string, start, end time.Duration, confidence *float64) {
	j, err := o.store.Get(ctx, jobID)
	if err != nil {
		return
	}
	j.AppendSegment(job.TranscriptionSegment{
		Text:       text,
		StartTime:  start,
		EndTime:    end,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	})
	_ = o.store.Update(ctx, j)
}

func (o *Orchestrator) fail(jobID uuid.UUID, rj *runningJob, cause error) {
	ctx := context.Background()
	j, err := o.store.Get(ctx, jobID)
	if err == nil && j.Status != job.StatusFailed && !j.Status.Terminal() {
		j.ErrorLog = cause.Error()
		j.Status = job.StatusFailed
		completed := time.Now()
		j.CompletedAt = &completed
		j.AppendLog(completed, job.SeverityError, cause.Error())
		_ = o.store.Update(ctx, j)
	}
	rj.cancel()
	rj.broadcaster.close()
	o.removeRunning(jobID)
}

// Stop implements job.TranscriptionStopper: signals the running task and
// closes its broadcast channel.
func (o *Orchestrator) Stop(jobID uuid.UUID) error {
	o.mu.Lock()
	rj, ok := o.running[jobID]
	o.mu.Unlock()
	if !ok {
		return nil // idempotent: nothing running for this job
	}
	rj.cancel()
	rj.broadcaster.close()
	o.removeRunning(jobID)
	return nil
}

func (o *Orchestrator) cleanup(jobID uuid.UUID) {
	o.mu.Lock()
	if rj, ok := o.running[jobID]; ok {
		rj.cancel()
		rj.broadcaster.close()
	}
	delete(o.running, jobID)
	o.mu.Unlock()
}

func (o *Orchestrator) removeRunning(jobID uuid.UUID) {
	o.mu.Lock()
	delete(o.running, jobID)
	o.mu.Unlock()
}

// Subscribe returns a read-end of the job's broadcast channel, or false if
// no task is currently running for it (§4.6).
func (o *Orchestrator) Subscribe(jobID uuid.UUID) (<-chan Segment, bool) {
	o.mu.Lock()
	rj, ok := o.running[jobID]
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	return rj.broadcaster.subscribe(), true
}

// SegmentsSince returns every persisted TranscriptionSegment on the job
// whose StartTime is at or after since, for poll-based catch-up (§4.6).
func (o *Orchestrator) SegmentsSince(ctx context.Context, jobID uuid.UUID, since time.Duration) ([]job.TranscriptionSegment, error) {
	j, err := o.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var out []job.TranscriptionSegment
	for _, seg := range j.TranscriptionSegments {
		if seg.StartTime >= since {
			out = append(out, seg)
		}
	}
	return out, nil
}

// Reconcile implements §4.6's restart reconciliation: any transcription job
// still Queued or Executing in persisted state when the process starts is
// set to Cancelled, since no background task survives a restart.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	stuck, err := o.store.ListStuckTranscriptions(ctx)
	if err != nil {
		return fmt.Errorf("transcription: list stuck jobs: %w", err)
	}
	now := time.Now()
	for _, j := range stuck {
		j.Status = job.StatusCancelled
		j.CompletedAt = &now
		j.AppendLog(now, job.SeverityWarning, "Job cancelled")
		if err := o.store.Update(ctx, j); err != nil {
			return fmt.Errorf("transcription: reconcile job %s: %w", j.ID, err)
		}
	}
	return nil
}
