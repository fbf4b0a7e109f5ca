// Package config loads the people service settings from an optional YAML
// file and the process environment. Environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Environment variables and defaults.
const (
	EnvServerAddress = "GRID_SERVER_ADDRESS"
	EnvReadyTimeout  = "GRID_READY_TIMEOUT"
	EnvRuntimeMode   = "GRID_RUNTIME_MODE"
	EnvMockSeed      = "GRID_MOCK_SEED"
	EnvLogLevel      = "PEOPLE_LOG_LEVEL"
	EnvLogFormat     = "PEOPLE_LOG_FORMAT"

	DefaultServerAddress = "localhost:1408"
	DefaultReadyTimeout  = 30 * time.Second
	DefaultListenAddress = ":8080"
)

// Runtime modes.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Config holds every setting of the people service.
type Config struct {
	Grid Grid `yaml:"grid"`
	Log  Log  `yaml:"log"`
}

// Grid selects and tunes the grid connection.
type Grid struct {
	Mode    string `yaml:"mode"`
	Address string `yaml:"address"`
	// ReadyTimeoutMillis mirrors GRID_READY_TIMEOUT.
	ReadyTimeoutMillis int64  `yaml:"ready_timeout_ms"`
	MockSeed           string `yaml:"mock_seed"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Grid: Grid{
			Mode:               ModeAuto,
			Address:            DefaultServerAddress,
			ReadyTimeoutMillis: DefaultReadyTimeout.Milliseconds(),
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// ReadyTimeout returns the readiness wait as a duration.
func (g Grid) ReadyTimeout() time.Duration {
	return time.Duration(g.ReadyTimeoutMillis) * time.Millisecond
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(bytes, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.Grid.Mode = strings.ToLower(strings.TrimSpace(cfg.Grid.Mode))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	// a set but empty address is kept blank so auto mode falls back to mock
	if v, ok := lookup(EnvServerAddress); ok {
		c.Grid.Address = strings.TrimSpace(v)
	}
	str(EnvRuntimeMode, &c.Grid.Mode)
	str(EnvMockSeed, &c.Grid.MockSeed)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)

	if v, ok := lookup(EnvReadyTimeout); ok && strings.TrimSpace(v) != "" {
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvReadyTimeout, v, err)
		}
		c.Grid.ReadyTimeoutMillis = ms
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Grid.Mode {
	case ModeAuto, ModeHTTP, ModeMock:
	default:
		return fmt.Errorf("unsupported %s value %q", EnvRuntimeMode, c.Grid.Mode)
	}
	if c.Grid.ReadyTimeoutMillis <= 0 {
		return fmt.Errorf("%s must be a positive number of milliseconds, got %d", EnvReadyTimeout, c.Grid.ReadyTimeoutMillis)
	}
	if c.Grid.Mode == ModeHTTP && strings.TrimSpace(c.Grid.Address) == "" {
		return fmt.Errorf("http mode requires %s", EnvServerAddress)
	}
	return nil
}
