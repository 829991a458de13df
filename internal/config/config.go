// Package config manages gotund daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete gotund configuration.
type Config struct {
	Tun     TunConfig     `koanf:"tun"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// TunConfig holds the TUN device configuration.
type TunConfig struct {
	// Name is the TUN interface name (e.g., "gotun0"). Empty lets the
	// kernel pick one.
	Name string `koanf:"name"`

	// MTU is the device MTU in octets. Packet buffers are sized from it.
	MTU int `koanf:"mtu"`

	// Address is the local IP address assigned to the device, recorded
	// for logging. Address and route setup is done by the operator.
	Address string `koanf:"address"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// LocalAddr parses the configured device address as a netip.Addr.
// An empty address is allowed and returns the zero Addr.
func (tc TunConfig) LocalAddr() (netip.Addr, error) {
	if tc.Address == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(tc.Address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse tun address %q: %w", tc.Address, err)
	}
	return addr, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// mtuMin is the smallest acceptable MTU, the IPv4 minimum reassembly
// buffer size (RFC 791 Section 3.2).
const mtuMin = 576

// mtuMax is the largest acceptable MTU, bounded by the 16-bit IPv4
// total-length field.
const mtuMax = 65535

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Tun: TunConfig{
			Name: "gotun0",
			MTU:  1500,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for gotund configuration.
// Variables are named GOTUN_<section>_<key>, e.g., GOTUN_TUN_NAME.
const envPrefix = "GOTUN_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOTUN_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GOTUN_TUN_NAME      -> tun.name
//	GOTUN_TUN_MTU       -> tun.mtu
//	GOTUN_TUN_ADDRESS   -> tun.address
//	GOTUN_METRICS_ADDR  -> metrics.addr
//	GOTUN_METRICS_PATH  -> metrics.path
//	GOTUN_LOG_LEVEL     -> log.level
//	GOTUN_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// GOTUN_TUN_NAME -> tun.name (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOTUN_TUN_NAME -> tun.name.
// Strips the GOTUN_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"tun.name":     defaults.Tun.Name,
		"tun.mtu":      defaults.Tun.MTU,
		"tun.address":  defaults.Tun.Address,
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidMTU indicates the MTU is outside [576, 65535].
	ErrInvalidMTU = errors.New("tun.mtu must be between 576 and 65535")

	// ErrInvalidAddress indicates the tun address does not parse.
	ErrInvalidAddress = errors.New("tun.address is invalid")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	if cfg.Tun.MTU < mtuMin || cfg.Tun.MTU > mtuMax {
		return fmt.Errorf("%w: got %d", ErrInvalidMTU, cfg.Tun.MTU)
	}

	if _, err := cfg.Tun.LocalAddr(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
