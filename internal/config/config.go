// Package config loads and validates the bot configuration from a YAML
// file. Decoding is strict: unknown keys are an error.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Timezone  string          `yaml:"timezone"`
	Policy    string          `yaml:"policy"`  // "sequential" | "random-daily"
	Catalog   string          `yaml:"catalog"` // path to the Label=Count file
	Triggers  []TriggerConfig `yaml:"triggers"`
	Storage   StorageConfig   `yaml:"storage"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TelegramConfig struct {
	Token       string   `yaml:"token"`
	AdminID     int64    `yaml:"admin_id"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

type TriggerConfig struct {
	At     string `yaml:"at"` // "HH:MM" local wall-clock
	Action string `yaml:"action"`
}

type StorageConfig struct {
	Driver      string   `yaml:"driver"`
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type BroadcastConfig struct {
	Workers    int `yaml:"workers"`
	RatePerSec int `yaml:"rate_per_sec"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

// Duration is a yaml-decodable time.Duration ("10s", "1m30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads, decodes and validates a config file, then fills defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = Duration(10 * time.Second)
	}
	if strings.TrimSpace(c.Policy) == "" {
		c.Policy = "sequential"
	}
	if len(c.Triggers) == 0 {
		c.Triggers = []TriggerConfig{
			{At: "09:00", Action: "send"},
			{At: "22:00", Action: "remind"},
		}
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = "./lectio.db"
	}
	if c.Broadcast.Workers <= 0 {
		c.Broadcast.Workers = 4
	}
	if c.Broadcast.RatePerSec <= 0 {
		c.Broadcast.RatePerSec = 10
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports fatal-at-startup configuration problems.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.AdminID == 0 {
		return errors.New("telegram.admin_id is required")
	}
	if strings.TrimSpace(c.Catalog) == "" {
		return errors.New("catalog path is required")
	}
	switch c.Policy {
	case "sequential", "random-daily":
	default:
		return fmt.Errorf("policy must be sequential or random-daily, got %q", c.Policy)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", c.Timezone, err)
		}
	}
	for _, tr := range c.Triggers {
		switch tr.Action {
		case "send", "remind":
		default:
			return fmt.Errorf("trigger %q: action must be send or remind, got %q", tr.At, tr.Action)
		}
	}
	return nil
}

// Location resolves the configured timezone, defaulting to the host
// zone.
func (c *Config) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
