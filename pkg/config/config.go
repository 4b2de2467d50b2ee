// Package config loads the daemon configuration from a TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Sandbox backends.
const (
	SandboxLocal  = "local"
	SandboxDocker = "docker"
)

// Config is the daemon configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `toml:"addr"`

	// DBPath is the SQLite database file path.
	DBPath string `toml:"db_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	Sandbox SandboxConfig `toml:"sandbox"`
}

// SandboxConfig selects how project previews are rendered.
type SandboxConfig struct {
	// Backend is "local" (chrome on the host) or "docker" (one
	// headless-shell container per session).
	Backend string `toml:"backend"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Addr:     ":8090",
		DBPath:   filepath.Join(dataDir(), "zenith.db"),
		LogLevel: "info",
		Sandbox: SandboxConfig{
			Backend: SandboxLocal,
		},
	}
}

// Load reads the configuration file at path (missing files are not an
// error) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Sandbox.Backend != SandboxLocal && cfg.Sandbox.Backend != SandboxDocker {
		return Config{}, fmt.Errorf("unknown sandbox backend: %q", cfg.Sandbox.Backend)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ZENITH_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("ZENITH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ZENITH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZENITH_SANDBOX_BACKEND"); v != "" {
		cfg.Sandbox.Backend = v
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(dataDir(), "config.toml")
}

func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "zenith")
	}
	return "."
}
