package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/jobauth/internal/config"
)

// sttTranscribeEndpoint mirrors the chat channels' voice-message STT proxy
// contract: multipart file upload, bearer token, optional tenant field.
const sttTranscribeEndpoint = "/transcribe_audio"

// sttResponse is the expected JSON body from the STT proxy. The proxy
// contract predates per-segment timing, so a whole-chunk reply is treated as
// a single segment spanning the chunk.
type sttResponse struct {
	Transcript string  `json:"transcript"`
	Duration   float64 `json:"duration_seconds"`
}

// HTTPSTTClient implements STTClient against the same STT proxy service the
// chat channels call for voice-message transcription (§4.6 step 4). The
// modelID argument is accepted for interface conformance; this module has no
// per-model credential table yet, so every model resolves to the one
// configured proxy (see ConfigAPIKeyResolver in this file).
type HTTPSTTClient struct {
	cfg    config.TranscriptionConfig
	client *http.Client
}

func NewHTTPSTTClient(cfg config.TranscriptionConfig) *HTTPSTTClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSTTClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPSTTClient) Transcribe(ctx context.Context, modelID uuid.UUID, wavBytes []byte, language string) (STTResult, error) {
	if c.cfg.ProxyURL == "" {
		return STTResult{}, fmt.Errorf("transcription: no STT proxy configured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return STTResult{}, fmt.Errorf("transcription: create form file field: %w", err)
	}
	if _, err := fw.Write(wavBytes); err != nil {
		return STTResult{}, fmt.Errorf("transcription: write audio bytes to form: %w", err)
	}
	if c.cfg.TenantID != "" {
		if err := w.WriteField("tenant_id", c.cfg.TenantID); err != nil {
			return STTResult{}, fmt.Errorf("transcription: write tenant_id field: %w", err)
		}
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return STTResult{}, fmt.Errorf("transcription: write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return STTResult{}, fmt.Errorf("transcription: close multipart writer: %w", err)
	}

	url := c.cfg.ProxyURL + sttTranscribeEndpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return STTResult{}, fmt.Errorf("transcription: build request to %q: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return STTResult{}, fmt.Errorf("transcription: request to %q failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return STTResult{}, fmt.Errorf("transcription: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return STTResult{}, fmt.Errorf("transcription: upstream returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result sttResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return STTResult{}, fmt.Errorf("transcription: parse response JSON: %w", err)
	}

	duration := time.Duration(result.Duration * float64(time.Second))
	return STTResult{
		Text:     result.Transcript,
		Duration: duration,
		Segments: []STTSegment{{Text: result.Transcript, Start: 0, End: duration}},
	}, nil
}

// ConfigAPIKeyResolver resolves the transcription proxy's API key straight
// out of config. Kept as its own type (rather than inlined into
// HTTPSTTClient) so an orchestrator wired against a future per-model
// credential store can swap it without touching the STT client.
type ConfigAPIKeyResolver struct {
	cfg config.TranscriptionConfig
}

func NewConfigAPIKeyResolver(cfg config.TranscriptionConfig) *ConfigAPIKeyResolver {
	return &ConfigAPIKeyResolver{cfg: cfg}
}

func (r *ConfigAPIKeyResolver) ResolveAPIKey(ctx context.Context, modelID uuid.UUID) (string, error) {
	if r.cfg.APIKey == "" {
		return "", fmt.Errorf("transcription: no STT API key configured")
	}
	return r.cfg.APIKey, nil
}
