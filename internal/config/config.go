// Package config loads the tool configuration: credentials for the source and
// destination instances plus tuning knobs. Values come from a YAML file, with
// environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rlggyp/grafana-exim/internal/client"
)

const (
	// DefaultWorkers is the write-pool size per entity class.
	DefaultWorkers = 4
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 5 * time.Second
)

// Config holds everything a run needs.
type Config struct {
	Src     client.Credential `yaml:"src"`
	Dst     client.Credential `yaml:"dst"`
	Workers int               `yaml:"workers"`
	Timeout Duration          `yaml:"timeout"`
}

// Duration parses YAML strings like "5s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads configuration. path may be empty, in which case the CONFIG_FILE
// environment variable names the file; if neither is set, configuration comes
// from the environment alone. A .env file in the working directory is loaded
// first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Workers: DefaultWorkers,
		Timeout: Duration(DefaultTimeout),
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if url := os.Getenv("GRAFANA_SRC_URL"); url != "" {
		cfg.Src.Host = url
	}
	if key := os.Getenv("GRAFANA_SRC_API_KEY"); key != "" {
		cfg.Src.APIKey = key
	}
	if url := os.Getenv("GRAFANA_DST_URL"); url != "" {
		cfg.Dst.Host = url
	}
	if key := os.Getenv("GRAFANA_DST_API_KEY"); key != "" {
		cfg.Dst.APIKey = key
	}

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Duration(DefaultTimeout)
	}
	return cfg, nil
}

// ValidateSrc checks that the source instance is fully configured.
func (c *Config) ValidateSrc() error {
	return validate("src", c.Src)
}

// ValidateDst checks that the destination instance is fully configured.
func (c *Config) ValidateDst() error {
	return validate("dst", c.Dst)
}

func validate(side string, cred client.Credential) error {
	if cred.Host == "" {
		return fmt.Errorf("%s.host is not configured", side)
	}
	if cred.APIKey == "" {
		return fmt.Errorf("%s.api_key is not configured", side)
	}
	return nil
}
