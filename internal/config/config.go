package config

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the Job & Authorization Engine
// gateway.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Gateway   GatewayConfig   `json:"gateway"`
	Auth      AuthConfig      `json:"auth"`
	Providers ProvidersConfig `json:"providers"`
	Sandbox       SandboxConfig       `json:"sandbox,omitempty"`
	Telemetry     TelemetryConfig     `json:"telemetry,omitempty"`
	Cron          CronConfig          `json:"cron,omitempty"`
	Transcription TranscriptionConfig `json:"transcription,omitempty"`
	Search        SearchConfig        `json:"search,omitempty"`
	mu            sync.RWMutex
}

// DatabaseConfig selects and configures the persistence backend (§2).
// PostgresDSN is never read from the config file (secret) — only from env.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`                      // from env JOBAUTH_POSTGRES_DSN only
	SqlitePath  string `json:"sqlite_path,omitempty"`   // standalone fallback when PostgresDSN is empty
}

// IsManaged reports whether the gateway has a Postgres DSN configured.
func (c *Config) IsManaged() bool {
	return c.Database.PostgresDSN != ""
}

// GatewayConfig controls the chat gateway's HTTP/WS server (§7-8).
type GatewayConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Token           string   `json:"token,omitempty"`             // bearer token for WS/HTTP auth
	AllowedOrigins  []string `json:"allowed_origins,omitempty"`   // WebSocket CORS whitelist (empty = allow all)
	MaxMessageChars int      `json:"max_message_chars,omitempty"` // max inbound user message characters
	RateLimitRPM    int      `json:"rate_limit_rpm,omitempty"`    // requests per minute per caller (0 = disabled)
}

// AuthConfig holds authorization settings that are not themselves stored
// rows. ApprovalTimeoutSeconds is loaded but no component reads it: pending
// approvals do not expire, and the hard fallback clearance level is the
// authz.HardDefault constant, not a config field.
type AuthConfig struct {
	ApprovalTimeoutSeconds int `json:"approval_timeout_seconds,omitempty"` // default 300
}

// ProvidersConfig maps an LLM provider name to its credentials.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Groq       ProviderConfig `json:"groq"`
	Gemini     ProviderConfig `json:"gemini"`
	DashScope  ProviderConfig `json:"dashscope"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base,omitempty"`
	Model   string `json:"model,omitempty"`
}

// HasAnyProvider returns true if at least one provider has an API key configured.
func (c *Config) HasAnyProvider() bool {
	p := c.Providers
	return p.Anthropic.APIKey != "" || p.OpenAI.APIKey != "" || p.OpenRouter.APIKey != "" ||
		p.Groq.APIKey != "" || p.Gemini.APIKey != "" || p.DashScope.APIKey != ""
}

// SandboxConfig controls the container-backed execution environment
// dangerous-shell jobs and Safe-DSL run inside (§4.5, §6).
type SandboxConfig struct {
	Enabled         bool              `json:"enabled,omitempty"`
	Image           string            `json:"image,omitempty"`
	WorkspaceAccess string            `json:"workspace_access,omitempty"` // "none", "ro", "rw" (default)
	MemoryMB        int               `json:"memory_mb,omitempty"`
	CPUs            float64           `json:"cpus,omitempty"`
	TimeoutSec      int               `json:"timeout_sec,omitempty"`
	NetworkEnabled  bool              `json:"network_enabled,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// CronConfig holds settings for a periodic reconciliation sweep. They are
// loaded but no component reads them; transcription reconciliation (§4.6's
// restart safety net) runs once, when the serve command starts.
type CronConfig struct {
	ReconcileInterval string `json:"reconcile_interval,omitempty"` // Go duration string, default "1m"
	MaxRetries        int    `json:"max_retries,omitempty"`
	RetryBaseDelay    string `json:"retry_base_delay,omitempty"`
	RetryMaxDelay     string `json:"retry_max_delay,omitempty"`
}

// TranscriptionConfig configures the STT proxy the Transcription Orchestrator
// calls for each audio chunk (§4.6). The proxy contract (multipart file
// upload, bearer token, optional tenant field) mirrors the one the chat
// channels already speak for voice-message transcription.
type TranscriptionConfig struct {
	ProxyURL   string `json:"proxy_url,omitempty"`
	APIKey     string `json:"-"` // from env JOBAUTH_STT_API_KEY only
	TenantID   string `json:"tenant_id,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty"` // default 30

	// ListDevicesCommand and CaptureCommand shell out to whatever audio
	// tooling is installed on the host (arecord, ffmpeg, sox) rather than
	// binding to one platform-specific capture library. ListDevicesCommand's
	// stdout is parsed as "id\tname" per line. CaptureCommand's "{device}"
	// placeholder is substituted with the requested device ID; its stdout
	// must be a raw 16kHz mono 16-bit PCM stream.
	ListDevicesCommand []string `json:"list_devices_command,omitempty"`
	CaptureCommand     []string `json:"capture_command,omitempty"`
}

// SearchConfig controls the QuerySearchEngine action's backend (§4.5). Brave
// is tried first when a key is configured; DuckDuckGo's HTML endpoint is the
// keyless fallback.
type SearchConfig struct {
	BraveAPIKey string `json:"-"` // from env JOBAUTH_BRAVE_API_KEY only
	DDGEnabled  bool   `json:"ddg_enabled,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"` // default 5
}

// ReplaceFrom copies all data fields from src into c, preserving c's mutex.
func (c *Config) ReplaceFrom(src *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Database = src.Database
	c.Gateway = src.Gateway
	c.Auth = src.Auth
	c.Providers = src.Providers
	c.Sandbox = src.Sandbox
	c.Telemetry = src.Telemetry
	c.Cron = src.Cron
	c.Transcription = src.Transcription
	c.Search = src.Search
}
