// Package config provides configuration structures and loading logic for the
// routing layer and the bridge daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devlinkhq/devlink/pkg/bounded"
	"github.com/devlinkhq/devlink/pkg/logging"
)

// Config holds the global configuration.
type Config struct {
	Relay     RelayConfig     `yaml:"relay"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   logging.Config  `yaml:"logging"`
}

// RelayConfig names the relay the remote backend dials.
type RelayConfig struct {
	Address string `yaml:"address"`
}

// TimeoutConfig bounds remote calls, one deadline per API surface needing
// them. Zero values inherit Default.
type TimeoutConfig struct {
	Default Duration `yaml:"default"`
	Camera  Duration `yaml:"camera"`
	CANBus  Duration `yaml:"canbus"`
	Serial  Duration `yaml:"serial"`
	Depth   Duration `yaml:"depth"`
}

// For returns the deadline for one surface, falling back to Default and
// then to the process default.
func (t TimeoutConfig) For(surface string) time.Duration {
	var d Duration
	switch surface {
	case "camera":
		d = t.Camera
	case "canbus":
		d = t.CANBus
	case "serial":
		d = t.Serial
	case "depth":
		d = t.Depth
	}
	if d <= 0 {
		d = t.Default
	}
	if d <= 0 {
		return bounded.EnvDeadline()
	}
	return time.Duration(d)
}

// BridgeConfig configures the device-exporting daemon.
type BridgeConfig struct {
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
	Simulate      bool   `yaml:"simulate"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("15s", "500ms") as well as bare nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration type %T", raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Listen:        ":7368",
			MetricsListen: ":9368",
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a file, expands environment variables, and
// applies environment overrides. A missing path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVLINK_RELAY"); v != "" {
		cfg.Relay.Address = v
	}
	if v := os.Getenv("DEVLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if cfg.Timeouts.Default <= 0 {
		cfg.Timeouts.Default = Duration(bounded.EnvDeadline())
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Timeouts.Default < 0 {
		return fmt.Errorf("timeouts.default must not be negative")
	}
	for name, d := range map[string]Duration{
		"camera": c.Timeouts.Camera,
		"canbus": c.Timeouts.CANBus,
		"serial": c.Timeouts.Serial,
		"depth":  c.Timeouts.Depth,
	} {
		if d < 0 {
			return fmt.Errorf("timeouts.%s must not be negative", name)
		}
	}
	return nil
}
