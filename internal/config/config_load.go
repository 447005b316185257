package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:            "0.0.0.0",
			Port:            18790,
			MaxMessageChars: 32000,
			RateLimitRPM:    20,
		},
		Auth: AuthConfig{
			ApprovalTimeoutSeconds: 300,
		},
		Cron: CronConfig{
			ReconcileInterval: "1m",
			MaxRetries:        3,
			RetryBaseDelay:    "2s",
			RetryMaxDelay:     "30s",
		},
		Transcription: TranscriptionConfig{
			TimeoutSec: 30,
		},
		Search: SearchConfig{
			DDGEnabled: true,
			MaxResults: 5,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values; secrets (API keys, DSNs, bearer tokens) are
// only ever read from the environment, never persisted to the config file.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("JOBAUTH_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("JOBAUTH_ANTHROPIC_BASE_URL", &c.Providers.Anthropic.APIBase)
	envStr("JOBAUTH_ANTHROPIC_MODEL", &c.Providers.Anthropic.Model)
	envStr("JOBAUTH_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("JOBAUTH_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("JOBAUTH_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("JOBAUTH_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("JOBAUTH_DASHSCOPE_API_KEY", &c.Providers.DashScope.APIKey)
	envStr("JOBAUTH_DASHSCOPE_BASE_URL", &c.Providers.DashScope.APIBase)

	envStr("JOBAUTH_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("JOBAUTH_HOST", &c.Gateway.Host)
	if v := os.Getenv("JOBAUTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("JOBAUTH_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("JOBAUTH_SQLITE_PATH", &c.Database.SqlitePath)

	envStr("JOBAUTH_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("JOBAUTH_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("JOBAUTH_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("JOBAUTH_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("JOBAUTH_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	if v := os.Getenv("JOBAUTH_SANDBOX_ENABLED"); v != "" {
		c.Sandbox.Enabled = v == "true" || v == "1"
	}
	envStr("JOBAUTH_SANDBOX_IMAGE", &c.Sandbox.Image)
	if v := os.Getenv("JOBAUTH_SANDBOX_MEMORY_MB"); v != "" {
		if mb, err := strconv.Atoi(v); err == nil && mb > 0 {
			c.Sandbox.MemoryMB = mb
		}
	}

	envStr("JOBAUTH_STT_PROXY_URL", &c.Transcription.ProxyURL)
	envStr("JOBAUTH_STT_API_KEY", &c.Transcription.APIKey)
	envStr("JOBAUTH_STT_TENANT_ID", &c.Transcription.TenantID)
	if v := os.Getenv("JOBAUTH_STT_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			c.Transcription.TimeoutSec = sec
		}
	}

	envStr("JOBAUTH_BRAVE_API_KEY", &c.Search.BraveAPIKey)
	if v := os.Getenv("JOBAUTH_SEARCH_DDG_ENABLED"); v != "" {
		c.Search.DDGEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("JOBAUTH_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for optimistic concurrency (used
// by the config-reload watcher to detect no-op writes).
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// ApplyEnvOverrides re-applies environment variable overrides onto the
// config. Call this after a file reload to restore runtime secrets.
func (c *Config) ApplyEnvOverrides() {
	c.applyEnvOverrides()
}
