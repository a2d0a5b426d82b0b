// Package config loads the optional tznormalize configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/quidome/tznormalize-go/pkg/store"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "TZNORMALIZE_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

// Config holds all tznormalize settings. Command line flags override it.
type Config struct {
	// Timezone is applied to naive timestamps: "Z", "+05:30", "Europe/Amsterdam".
	Timezone string `yaml:"timezone"`

	DryRun  bool `yaml:"dry_run"`
	Verbose bool `yaml:"verbose"`

	Workers  int  `yaml:"workers"`
	GPS      bool `yaml:"gps"`
	MaxDepth int  `yaml:"max_depth"`

	Extensions  []string `yaml:"extensions"`
	MetricsFile string   `yaml:"metrics_file"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Workers:    runtime.NumCPU(),
		GPS:        true,
		MaxDepth:   -1,
		Extensions: store.Extensions(),
	}
}

// Path returns the config file to read: flagValue if set, else the value of
// $TZNORMALIZE_CONFIG. An empty result means no file.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}

// Load reads the file at path on top of the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d: %w", c.Workers, ErrInvalid)
	}
	if c.MaxDepth < -1 {
		return fmt.Errorf("max_depth must be -1 or more, got %d: %w", c.MaxDepth, ErrInvalid)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty: %w", ErrInvalid)
	}
	return nil
}
