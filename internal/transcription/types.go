// Package transcription implements the Transcription Orchestrator (§4.6):
// one background task per accepted transcription job, feeding a per-job
// broadcast channel from a strictly sequential chunk-processing loop.
package transcription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Device is one entry from the audio-capture driver's device list.
type Device struct {
	ID   string
	Name string
}

// AudioDriver captures raw audio and hands fixed-duration chunks to onChunk,
// strictly sequentially (§6: "onChunk is invoked sequentially; returning
// errors from onChunk propagate to the caller").
type AudioDriver interface {
	ListDevices(ctx context.Context) ([]Device, error)
	Capture(ctx context.Context, deviceID string, chunkDuration time.Duration, onChunk func(wav []byte, idx int) error) error
}

// STTSegment is one recognized span of speech within a chunk's response.
type STTSegment struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence *float64
}

// STTResult is the transcription client's response to one chunk (§6).
type STTResult struct {
	Text     string
	Duration time.Duration
	Segments []STTSegment
}

// STTClient transcribes a chunk of WAV-encoded audio.
type STTClient interface {
	Transcribe(ctx context.Context, modelID uuid.UUID, wavBytes []byte, language string) (STTResult, error)
}

// APIKeyResolver resolves and decrypts the provider API key for a
// transcription model (§4.6 step 1).
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, modelID uuid.UUID) (string, error)
}
