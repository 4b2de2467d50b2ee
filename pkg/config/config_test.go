package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Sandbox.Backend != SandboxLocal {
		t.Errorf("Backend = %q", cfg.Sandbox.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
addr = "127.0.0.1:9000"
log_level = "debug"

[sandbox]
backend = "docker"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Sandbox.Backend != SandboxDocker {
		t.Errorf("Backend = %q", cfg.Sandbox.Backend)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ZENITH_ADDR", ":7070")
	t.Setenv("ZENITH_SANDBOX_BACKEND", "docker")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Sandbox.Backend != SandboxDocker {
		t.Errorf("Backend = %q", cfg.Sandbox.Backend)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("ZENITH_SANDBOX_BACKEND", "firecracker")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
