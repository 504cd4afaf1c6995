package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "GRAFANA_SRC_URL", "GRAFANA_SRC_API_KEY", "GRAFANA_DST_URL", "GRAFANA_DST_API_KEY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
src:
  host: https://staging.example.com
  api_key: src-key
dst:
  host: https://prod.example.com
  api_key: dst-key
workers: 8
timeout: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Src.Host != "https://staging.example.com" {
		t.Errorf("Src.Host = %q", cfg.Src.Host)
	}
	if cfg.Dst.APIKey != "dst-key" {
		t.Errorf("Dst.APIKey = %q", cfg.Dst.APIKey)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if time.Duration(cfg.Timeout) != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", time.Duration(cfg.Timeout))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
src:
  host: https://staging.example.com
  api_key: src-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want default %d", cfg.Workers, DefaultWorkers)
	}
	if time.Duration(cfg.Timeout) != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", time.Duration(cfg.Timeout), DefaultTimeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
src:
  host: https://staging.example.com
  api_key: file-key
`)
	t.Setenv("GRAFANA_SRC_URL", "https://other.example.com")
	t.Setenv("GRAFANA_SRC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Src.Host != "https://other.example.com" {
		t.Errorf("Src.Host = %q, want env value", cfg.Src.Host)
	}
	if cfg.Src.APIKey != "env-key" {
		t.Errorf("Src.APIKey = %q, want env value", cfg.Src.APIKey)
	}
}

func TestLoad_ConfigFileEnvVar(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
dst:
  host: https://prod.example.com
  api_key: dst-key
`)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dst.Host != "https://prod.example.com" {
		t.Errorf("Dst.Host = %q", cfg.Dst.Host)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "timeout: banana\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateSrc(); err == nil {
		t.Error("expected error for empty src")
	}
	if err := cfg.ValidateDst(); err == nil {
		t.Error("expected error for empty dst")
	}

	cfg.Src.Host = "https://staging.example.com"
	if err := cfg.ValidateSrc(); err == nil {
		t.Error("expected error for missing src api_key")
	}
	cfg.Src.APIKey = "key"
	if err := cfg.ValidateSrc(); err != nil {
		t.Errorf("ValidateSrc: %v", err)
	}
}
