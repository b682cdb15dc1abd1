package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/nodesync/internal/errors"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func code(err error) string {
	var ne *errors.NodesyncError
	if stderrors.As(err, &ne) {
		return ne.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Address = %q, want %q", cfg.Server.Address, DefaultAddress)
	}
	if cfg.Server.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Server.IdleTimeout, DefaultIdleTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Snapshot.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Snapshot.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, `
server:
  address: ":9090"
  idle_timeout: 90s
  max_uis: 5
log:
  level: debug
  format: json
filter: 'key in ["name"]'
snapshot:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "app:"
    ttl: 1h
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9090" || cfg.Server.MaxUIs != 5 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.Server.IdleTimeout)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if cfg.Snapshot.Redis.TTL != time.Hour || cfg.Snapshot.Redis.Prefix != "app:" {
		t.Errorf("Redis = %+v", cfg.Snapshot.Redis)
	}
	if cfg.Metrics.Namespace != DefaultMetricsNamespace {
		t.Errorf("Namespace = %q, want default", cfg.Metrics.Namespace)
	}
	if cfg.Path() != filepath.Join(dir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"invalid yaml", "server: [", "N102"},
		{"bad level", "log:\n  level: loud\n", "N103"},
		{"bad format", "log:\n  format: xml\n", "N103"},
		{"negative idle", "server:\n  idle_timeout: -1s\n", "N103"},
		{"unknown backend", "snapshot:\n  backend: disk\n", "N103"},
		{"redis without addr", "snapshot:\n  backend: redis\n", "N103"},
		{"s3 without bucket", "snapshot:\n  backend: s3\n", "N103"},
		{"bad filter", "filter: 'key +'\n", "N302"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.content)
			_, err := LoadFile(path)
			if got := code(err); got != tt.code {
				t.Errorf("LoadFile error = %v (code %q), want code %s", err, got, tt.code)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if code(err) != "N101" {
		t.Errorf("err = %v, want N101", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Server.IdleTimeout = 3 * time.Minute
	cfg.Snapshot.Backend = BackendS3
	cfg.Snapshot.S3 = S3Config{Bucket: "snaps", Region: "eu-west-1"}
	cfg.Filter = `key.startsWith("person.")`

	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Server.IdleTimeout != 3*time.Minute {
		t.Errorf("IdleTimeout = %v, want 3m", loaded.Server.IdleTimeout)
	}
	if loaded.Snapshot.S3 != cfg.Snapshot.S3 {
		t.Errorf("S3 = %+v, want %+v", loaded.Snapshot.S3, cfg.Snapshot.S3)
	}
	if loaded.Filter != cfg.Filter {
		t.Errorf("Filter = %q, want %q", loaded.Filter, cfg.Filter)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{Log: LogConfig{Level: tt.level}}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
