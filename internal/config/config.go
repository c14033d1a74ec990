package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig is one employer site entry. Code must match a registered
// adapter for the source to be crawlable.
type SourceConfig struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	NameCN     string `yaml:"name_cn"`
	Website    string `yaml:"website"`
	CareersURL string `yaml:"careers_url"`
	Enabled    bool   `yaml:"enabled"`
}

type Config struct {
	App struct {
		Port     int    `yaml:"port"`
		DataDir  string `yaml:"data_dir"`
		LogLevel string `yaml:"log_level"`
		DevMode  bool   `yaml:"dev_mode"`
	} `yaml:"app"`

	Crawl struct {
		// Schedule is a cron expression for the recurring run.
		Schedule string `yaml:"schedule"`
		// SourceDelaySeconds is the pause between sources in one run.
		SourceDelaySeconds int   `yaml:"source_delay_seconds"`
		PageSize           int   `yaml:"page_size"`
		MaxPages           int   `yaml:"max_pages"`
		PageDelayMs        int   `yaml:"page_delay_ms"`
		InternOnly         *bool `yaml:"intern_only"`
		// ExpiryGraceHours is how long a posting may stay unseen
		// before reconciliation marks it expired.
		ExpiryGraceHours int `yaml:"expiry_grace_hours"`
	} `yaml:"crawl"`

	Sources []SourceConfig `yaml:"sources"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 3000
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Crawl.Schedule == "" {
		c.Crawl.Schedule = "0 */6 * * *"
	}
	if c.Crawl.SourceDelaySeconds == 0 {
		c.Crawl.SourceDelaySeconds = 5
	}
	if c.Crawl.ExpiryGraceHours == 0 {
		c.Crawl.ExpiryGraceHours = 48
	}
}

// SourceDelay is the inter-source pause as a duration.
func (c Config) SourceDelay() time.Duration {
	return time.Duration(c.Crawl.SourceDelaySeconds) * time.Second
}

// ExpiryGrace is the reconciliation grace window as a duration.
func (c Config) ExpiryGrace() time.Duration {
	return time.Duration(c.Crawl.ExpiryGraceHours) * time.Hour
}
