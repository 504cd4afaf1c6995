package commands

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE",
		"GRAFANA_SRC_URL", "GRAFANA_SRC_API_KEY",
		"GRAFANA_DST_URL", "GRAFANA_DST_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func writeFolderSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "folders"), 0o755); err != nil {
		t.Fatalf("creating snapshot dir: %v", err)
	}
	err := os.WriteFile(filepath.Join(dir, "folders", "f1.json"), []byte(`{"uid":"f1","title":"Ops"}`), 0o644)
	if err != nil {
		t.Fatalf("writing snapshot file: %v", err)
	}
	return dir
}

func TestLoad_FlagsOverrideConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "workers: 8\ntimeout: 10s\n")

	cfg, log, err := load(Options{ConfigPath: path, Workers: 2, Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if log == nil {
		t.Fatal("expected a logger")
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want flag value 2", cfg.Workers)
	}
	if time.Duration(cfg.Timeout) != 3*time.Second {
		t.Errorf("Timeout = %v, want flag value 3s", time.Duration(cfg.Timeout))
	}
}

func TestLoad_KeepsFileValuesWithoutFlags(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "workers: 8\ntimeout: 10s\n")

	cfg, _, err := load(Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8 from file", cfg.Workers)
	}
	if time.Duration(cfg.Timeout) != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s from file", time.Duration(cfg.Timeout))
	}
}

func TestImport_FailedEntityReturnsErrEntitiesFailed(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			http.NotFound(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/api/folders":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, "dst:\n  host: "+srv.URL+"\n  api_key: token\n")
	err := Import(context.Background(), Options{ConfigPath: cfgPath, Dir: writeFolderSnapshot(t)})
	if !errors.Is(err, ErrEntitiesFailed) {
		t.Fatalf("Import returned %v, want ErrEntitiesFailed", err)
	}
}

func TestImport_CleanRunReturnsNil(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			http.NotFound(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/api/folders":
			w.Write([]byte(`{"uid":"f1","title":"Ops"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, "dst:\n  host: "+srv.URL+"\n  api_key: token\n")
	err := Import(context.Background(), Options{ConfigPath: cfgPath, Dir: writeFolderSnapshot(t)})
	if err != nil {
		t.Fatalf("Import returned %v, want nil", err)
	}
}

func TestImport_MissingDestinationConfig(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, "workers: 2\n")
	err := Import(context.Background(), Options{ConfigPath: cfgPath, Dir: t.TempDir()})
	if err == nil {
		t.Fatal("expected an error for unconfigured destination")
	}
}
