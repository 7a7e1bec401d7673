// Package config loads fxparams settings from YAML.
//
// Defaults are applied first and a file, when present, overlays them.
// Command-line flags override the loaded values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fxparams/internal/detect"
	"github.com/roach88/fxparams/internal/store"
)

// DefaultPath is searched when Load is given an empty path.
const DefaultPath = "fxparams.yaml"

type Config struct {
	Policy  string        `yaml:"policy"` // verify | trust_base
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type JournalConfig struct {
	Path   string `yaml:"path"`   // empty disables the journal
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // /metrics listen address for watch, e.g. :9100
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Policy:  "verify",
		Journal: JournalConfig{Driver: store.DriverCgo},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the config at path over the defaults.
//
// An empty path looks for DefaultPath in the working directory and falls back
// to the defaults when it does not exist. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over cfg, rejecting unknown fields, then fills blanks
// and validates.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg.Validate()
}

func applyDefaults(cfg *Config) {
	if cfg.Policy == "" {
		cfg.Policy = "verify"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = store.DriverCgo
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if _, err := detect.ParsePolicy(c.Policy); err != nil {
		return err
	}
	switch c.Journal.Driver {
	case store.DriverCgo, store.DriverPure:
	default:
		return fmt.Errorf("unknown journal driver %q: must be %s or %s", c.Journal.Driver, store.DriverCgo, store.DriverPure)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// DetectPolicy returns the parsed policy.
func (c *Config) DetectPolicy() detect.Policy {
	p, _ := detect.ParsePolicy(c.Policy)
	return p
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}
