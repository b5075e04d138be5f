package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server process configuration. Everything operational lives
// here; tenant-facing settings (SMTP credentials, branding, feature flags)
// live in the configuration table instead.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Cron      CronConfig      `yaml:"cron"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type UploadsConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type CronConfig struct {
	// Shared secret the campaign-run trigger must present as a bearer
	// token. Empty disables the endpoint.
	Secret string `yaml:"secret"`
}

type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default returns a runnable configuration for local use.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: "127.0.0.1:9000"},
		Database: DatabaseConfig{Path: "inboxdesk.db"},
		Uploads:  UploadsConfig{Dir: "uploads", MaxBytes: 10 << 20},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 5,
			Burst:     10,
		},
	}
}

// Load reads a YAML config file and fills in defaults. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = d.Uploads.Dir
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = d.Uploads.MaxBytes
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = d.RateLimit.PerSecond
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = d.RateLimit.Burst
	}
}

func (c *Config) validate() error {
	if c.Uploads.MaxBytes < 0 {
		return fmt.Errorf("config: uploads.max_bytes must not be negative")
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must not be negative")
	}
	return nil
}
