package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dantte-lp/gotun/internal/config"
)

// writeConfigFile marshals the given document to YAML in a temp dir and
// returns its path.
func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}

	path := filepath.Join(t.TempDir(), "gotund.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Tun.Name != "gotun0" || cfg.Tun.MTU != 1500 {
		t.Errorf("tun defaults = %+v", cfg.Tun)
	}
	if cfg.Metrics.Addr != ":9100" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics defaults = %+v", cfg.Metrics)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, map[string]any{
		"tun": map[string]any{
			"name":    "tun9",
			"mtu":     9000,
			"address": "10.8.0.1",
		},
		"log": map[string]any{
			"level": "debug",
		},
	})

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Tun.Name != "tun9" || cfg.Tun.MTU != 9000 || cfg.Tun.Address != "10.8.0.1" {
		t.Errorf("tun = %+v", cfg.Tun)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}

	// Unset sections inherit defaults.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("metrics addr = %q, want the default", cfg.Metrics.Addr)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want the default", cfg.Log.Format)
	}

	addr, err := cfg.Tun.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr() error: %v", err)
	}
	if addr.String() != "10.8.0.1" {
		t.Errorf("LocalAddr() = %s", addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	path := writeConfigFile(t, map[string]any{
		"tun": map[string]any{"name": "fromfile"},
	})

	t.Setenv("GOTUN_TUN_NAME", "fromenv")
	t.Setenv("GOTUN_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Tun.Name != "fromenv" {
		t.Errorf("tun name = %q, want the env override", cfg.Tun.Name)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want the env override", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() of a missing file succeeded")
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{
			name:   "empty metrics addr",
			mutate: func(c *config.Config) { c.Metrics.Addr = "" },
			want:   config.ErrEmptyMetricsAddr,
		},
		{
			name:   "MTU too small",
			mutate: func(c *config.Config) { c.Tun.MTU = 100 },
			want:   config.ErrInvalidMTU,
		},
		{
			name:   "MTU too large",
			mutate: func(c *config.Config) { c.Tun.MTU = 70000 },
			want:   config.ErrInvalidMTU,
		},
		{
			name:   "bad address",
			mutate: func(c *config.Config) { c.Tun.Address = "not-an-ip" },
			want:   config.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			if err := config.Validate(cfg); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := config.ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
