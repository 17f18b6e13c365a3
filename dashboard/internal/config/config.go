// Package config handles dashboard configuration loading and validation.
//
// # Configuration Sources
//
// Configuration is loaded from (in order of precedence):
// 1. Command-line flags
// 2. Environment variables (NETIMPACT_*)
// 3. Config file (YAML)
// 4. Defaults
//
// # Example Config File
//
//	control_plane:
//	  url: http://localhost:8080
//	  request_timeout: 30s
//
//	sync:
//	  throttle: 1.5s
//	  max_batch: 1000
//	  poll_interval: 5s
//	  mode: sim
//	  tick_ms: 1000
//
//	towers:
//	  file: data/towers.json
//	  radios: [LTE, NR]
//
//	viewport:
//	  north: 49.32
//	  south: 49.20
//	  east: -123.02
//	  west: -123.22
//
//	metrics:
//	  listen: :9102
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Config is the complete dashboard configuration.
type Config struct {
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Sync         SyncConfig         `yaml:"sync"`
	Towers       TowersConfig       `yaml:"towers"`
	Viewport     types.Viewport     `yaml:"viewport"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ControlPlaneConfig defines how to reach the control plane.
type ControlPlaneConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token,omitempty"`

	InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"`
	RequestTimeout     time.Duration `yaml:"request_timeout,omitempty"`
}

// SyncConfig tunes KPI synchronisation.
type SyncConfig struct {
	Throttle     time.Duration `yaml:"throttle"`
	MaxBatch     int           `yaml:"max_batch"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Mode         string        `yaml:"mode"`
	TickMs       int           `yaml:"tick_ms"`
}

// TowersConfig defines where tower reference data comes from.
// When File is empty the towers are fetched from the control plane.
type TowersConfig struct {
	File   string   `yaml:"file,omitempty"`
	Radios []string `yaml:"radios,omitempty"` // Displayed radio types; empty shows all
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"` // Empty disables the endpoint
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ControlPlane: ControlPlaneConfig{
			URL:            "http://localhost:8080",
			RequestTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Throttle:     1500 * time.Millisecond,
			MaxBatch:     1000,
			PollInterval: 5 * time.Second,
			Mode:         "sim",
			TickMs:       1000,
		},
		// Greater Vancouver
		Viewport: types.Viewport{North: 49.32, South: 49.20, East: -123.02, West: -123.22},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.ControlPlane.URL == "" {
		return fmt.Errorf("control_plane.url is required")
	}
	if c.Sync.Throttle <= 0 {
		return fmt.Errorf("sync.throttle must be positive")
	}
	if c.Sync.MaxBatch <= 0 || c.Sync.MaxBatch > types.MaxKPIBatch {
		return fmt.Errorf("sync.max_batch must be between 1 and %d", types.MaxKPIBatch)
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive")
	}
	v := c.Viewport
	if v.South > v.North {
		return fmt.Errorf("viewport.south (%v) is north of viewport.north (%v)", v.South, v.North)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
// Environment variables use NETIMPACT_ prefix:
// - NETIMPACT_CONTROL_PLANE_URL
// - NETIMPACT_CONTROL_PLANE_TOKEN
// - NETIMPACT_SYNC_THROTTLE (duration, e.g. "1500ms")
// - NETIMPACT_SYNC_MAX_BATCH
// - NETIMPACT_SYNC_POLL_INTERVAL (duration)
// - NETIMPACT_TOWERS_FILE
// - NETIMPACT_TOWERS_RADIOS (comma separated, e.g. "LTE,NR")
// - NETIMPACT_METRICS_LISTEN
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NETIMPACT_CONTROL_PLANE_URL"); v != "" {
		c.ControlPlane.URL = v
	}
	if v := os.Getenv("NETIMPACT_CONTROL_PLANE_TOKEN"); v != "" {
		c.ControlPlane.Token = v
	}
	if v := os.Getenv("NETIMPACT_SYNC_THROTTLE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.Throttle = d
		}
	}
	if v := os.Getenv("NETIMPACT_SYNC_MAX_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.MaxBatch = n
		}
	}
	if v := os.Getenv("NETIMPACT_SYNC_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.PollInterval = d
		}
	}
	if v := os.Getenv("NETIMPACT_TOWERS_FILE"); v != "" {
		c.Towers.File = v
	}
	if v := os.Getenv("NETIMPACT_TOWERS_RADIOS"); v != "" {
		c.Towers.Radios = SplitList(v)
	}
	if v := os.Getenv("NETIMPACT_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
