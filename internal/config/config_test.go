package config

import (
	"os"
	"path/filepath"
	"testing"
)

func Test_Load_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 18790 {
		t.Fatalf("expected default port 18790, got %d", cfg.Gateway.Port)
	}
}

func Test_Load_EnvOverridesFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	if err := os.WriteFile(path, []byte(`{"gateway": {"port": 9999}}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JOBAUTH_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 7777 {
		t.Fatalf("expected env override 7777, got %d", cfg.Gateway.Port)
	}
}

func Test_Config_HashChangesWithContent(t *testing.T) {
	a := Default()
	b := Default()
	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal defaults to hash equal")
	}
	b.Gateway.Port = 1
	if a.Hash() == b.Hash() {
		t.Fatalf("expected differing config to hash differently")
	}
}

func Test_Config_ReplaceFromCopiesFields(t *testing.T) {
	a := Default()
	b := Default()
	b.Gateway.Port = 42
	b.Database.SqlitePath = "/tmp/x.db"

	a.ReplaceFrom(b)
	if a.Gateway.Port != 42 || a.Database.SqlitePath != "/tmp/x.db" {
		t.Fatalf("ReplaceFrom did not copy fields: %+v", a)
	}
}
