package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"gridscript/internal/script"
)

// Config holds all application configuration.
type Config struct {
	Script ScriptConfig `yaml:"script"`
	Log    LogConfig    `yaml:"log"`
}

// ScriptConfig mirrors script.Limits in YAML form.
type ScriptConfig struct {
	Instructions int64         `yaml:"instructions"`
	HookInterval int64         `yaml:"hook_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	OutputLines  int           `yaml:"output_lines"`
	Ops          int           `yaml:"ops"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // console writer instead of JSON
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	limits := script.DefaultLimits()
	return &Config{
		Script: ScriptConfig{
			Instructions: limits.Instructions,
			HookInterval: limits.HookInterval,
			Timeout:      limits.Timeout,
			OutputLines:  limits.OutputLines,
			Ops:          limits.Ops,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Limits converts the script section into evaluation limits.
func (c *Config) Limits() script.Limits {
	return script.Limits{
		Instructions: c.Script.Instructions,
		HookInterval: c.Script.HookInterval,
		Timeout:      c.Script.Timeout,
		OutputLines:  c.Script.OutputLines,
		Ops:          c.Script.Ops,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Limits().Validate(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}
