// Package config loads plansync settings: defaults, overridden by an
// optional YAML file, overridden by PLANSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from "30m" style strings
// in both YAML and environment variables.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything the CLI needs to build a sync controller.
type Config struct {
	BaseURL       string   `yaml:"base_url" env:"PLANSYNC_BASE_URL"`
	Token         string   `yaml:"token" env:"PLANSYNC_TOKEN"`
	UserID        string   `yaml:"user_id" env:"PLANSYNC_USER_ID"`
	StoreBackend  string   `yaml:"store_backend" env:"PLANSYNC_STORE_BACKEND"` // "file" or "sqlite"
	StorePath     string   `yaml:"store_path" env:"PLANSYNC_STORE_PATH"`
	TTL           Duration `yaml:"ttl" env:"PLANSYNC_TTL"`
	SoftThreshold Duration `yaml:"soft_threshold" env:"PLANSYNC_SOFT_THRESHOLD"`
	HTTPTimeout   Duration `yaml:"http_timeout" env:"PLANSYNC_HTTP_TIMEOUT"`
	CalorieDelta  float64  `yaml:"calorie_delta" env:"PLANSYNC_CALORIE_DELTA"`
	ProteinDelta  float64  `yaml:"protein_delta" env:"PLANSYNC_PROTEIN_DELTA"`
	MinAPIVersion string   `yaml:"min_api_version" env:"PLANSYNC_MIN_API_VERSION"`
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "plansync.yaml"
	}
	return filepath.Join(home, ".plansync", "config.yaml")
}

func defaults() Config {
	return Config{
		StoreBackend:  "file",
		StorePath:     filepath.Join(filepath.Dir(DefaultPath()), "plans"),
		TTL:           Duration(time.Hour),
		SoftThreshold: Duration(30 * time.Minute),
		HTTPTimeout:   Duration(30 * time.Second),
	}
}

// Load reads path (missing file is fine, defaults apply) and then folds
// in environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file: env vars alone may still be enough.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the controller cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required (or set PLANSYNC_BASE_URL)")
	}
	if c.UserID == "" {
		return errors.New("user_id is required (or set PLANSYNC_USER_ID)")
	}
	if c.StoreBackend != "file" && c.StoreBackend != "sqlite" {
		return fmt.Errorf("store_backend must be \"file\" or \"sqlite\" (got %q)", c.StoreBackend)
	}
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.SoftThreshold <= 0 || c.SoftThreshold.Std() >= c.TTL.Std() {
		return errors.New("soft_threshold must be positive and shorter than ttl")
	}
	return nil
}
