// Package config loads the feedback engine's configuration from a YAML
// file with environment-variable overrides for secrets, following the
// enumerated configuration in the specification.
package config

import (
	"os"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// Config is the engine's full configuration surface.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Store struct {
		URL string `yaml:"url"`
	} `yaml:"store"`

	LLM struct {
		PrimaryModel     string        `yaml:"primary_model"`
		SecondaryModel   string        `yaml:"secondary_model"`
		SecondaryRegion  string        `yaml:"secondary_region"`
		MockMode         bool          `yaml:"mock_mode"`
		MockLatency      time.Duration `yaml:"mock_latency"`
		RequestTimeout   time.Duration `yaml:"request_timeout"`
		ConcurrencyLimit int           `yaml:"concurrency_limit"`

		// Secrets — always sourced from the environment, never from the
		// YAML file itself.
		PrimaryAPIKey   string `yaml:"-"`
		SecondaryAPIKey string `yaml:"-"`
	} `yaml:"llm"`

	AIDeadline time.Duration `yaml:"ai_deadline"`

	Alert struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"alert"`

	Scheduler struct {
		Idle  time.Duration `yaml:"idle"`
		Gap   time.Duration `yaml:"gap"`
		Batch int           `yaml:"batch"`
	} `yaml:"scheduler"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration's zero-input defaults, matching the
// specification's stated default magnitudes.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Store.URL = "feedback.db"
	c.LLM.PrimaryModel = "claude-haiku-4-5"
	c.LLM.SecondaryModel = "anthropic.claude-3-haiku-20240307-v1:0"
	c.LLM.SecondaryRegion = "us-east-1"
	c.LLM.MockLatency = 300 * time.Millisecond
	c.LLM.RequestTimeout = 5 * time.Second
	c.LLM.ConcurrencyLimit = 50
	c.AIDeadline = 450 * time.Millisecond
	c.Scheduler.Idle = 5 * time.Second
	c.Scheduler.Gap = 1 * time.Second
	c.Scheduler.Batch = 10
	c.Logging.Level = "info"
	return &c
}

// Load reads a YAML configuration file, applies environment overrides for
// secrets, fills gaps with Default, and validates the result. An empty
// path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(err, "read config file")
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	cfg.LLM.PrimaryAPIKey = os.Getenv("AEGIS_PRIMARY_LLM_KEY")
	cfg.LLM.SecondaryAPIKey = os.Getenv("AEGIS_SECONDARY_LLM_KEY")
	if v := os.Getenv("AEGIS_MOCK_MODE"); v == "true" || v == "1" {
		cfg.LLM.MockMode = true
	}
	if v := os.Getenv("AEGIS_ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alert.WebhookURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.AIDeadline <= 0 {
		return errors.Errorf("ai_deadline must be positive, got %s", c.AIDeadline)
	}
	if c.LLM.ConcurrencyLimit <= 0 {
		return errors.Errorf("llm concurrency_limit must be positive, got %d", c.LLM.ConcurrencyLimit)
	}
	if c.Store.URL == "" {
		return errors.New("store.url must not be empty")
	}
	return nil
}

// UseMock reports whether the LLM client should bypass real providers.
func (c *Config) UseMock() bool {
	return c.LLM.MockMode || (c.LLM.PrimaryAPIKey == "" && c.LLM.SecondaryAPIKey == "")
}
