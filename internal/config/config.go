// Package config provides YAML-based configuration loading for inboxd.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level inboxd configuration, loaded from inboxd.yaml.
type Config struct {
	Primary   StoreConfig    `yaml:"primary"`
	Woodstock StoreConfig    `yaml:"woodstock"`
	ChatRace  ChatRaceConfig `yaml:"chatrace"`
	Sync      SyncConfig     `yaml:"sync"`
	API       APIConfig      `yaml:"api"`
}

// StoreConfig holds connection settings for one Postgres store.
type StoreConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// ChatRaceConfig holds settings for the upstream chat-platform API.
type ChatRaceConfig struct {
	APIURL    string `yaml:"api_url"`
	Token     string `yaml:"token"`
	AccountID string `yaml:"account_id"`
	PageSize  int    `yaml:"page_size"`
}

// SyncConfig controls the sync orchestrator.
type SyncConfig struct {
	Cron             string `yaml:"cron"`               // 5-field cron expression for scheduled passes
	SourceTimeoutSec int    `yaml:"source_timeout_sec"` // per-source fetch timeout
	LockTimeoutSec   int    `yaml:"lock_timeout_sec"`   // stale sync-run heartbeat cutoff
}

// APIConfig controls the HTTP read API.
type APIConfig struct {
	Port                 int `yaml:"port"`
	MaxConversationLimit int `yaml:"max_conversation_limit"`
	MaxMessageLimit      int `yaml:"max_message_limit"`
}

// envOverrides are secrets and connection strings that may be supplied via
// the environment (INBOXD_*) instead of the config file.
type envOverrides struct {
	PrimaryDSN    string `envconfig:"PRIMARY_DSN"`
	WoodstockDSN  string `envconfig:"WOODSTOCK_DSN"`
	ChatRaceURL   string `envconfig:"CHATRACE_URL"`
	ChatRaceToken string `envconfig:"CHATRACE_TOKEN"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment overrides
// are applied after unmarshal and before validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays INBOXD_* environment variables onto the config.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("inboxd", &env); err != nil {
		return fmt.Errorf("config: env overrides: %w", err)
	}
	if env.PrimaryDSN != "" {
		c.Primary.DSN = env.PrimaryDSN
	}
	if env.WoodstockDSN != "" {
		c.Woodstock.DSN = env.WoodstockDSN
	}
	if env.ChatRaceURL != "" {
		c.ChatRace.APIURL = env.ChatRaceURL
	}
	if env.ChatRaceToken != "" {
		c.ChatRace.Token = env.ChatRaceToken
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Primary.MaxOpenConns == 0 {
		c.Primary.MaxOpenConns = 10
	}
	if c.Primary.MaxIdleConns == 0 {
		c.Primary.MaxIdleConns = 2
	}
	if c.Woodstock.MaxOpenConns == 0 {
		c.Woodstock.MaxOpenConns = 4
	}
	if c.Woodstock.MaxIdleConns == 0 {
		c.Woodstock.MaxIdleConns = 1
	}
	if c.ChatRace.PageSize == 0 {
		c.ChatRace.PageSize = 200
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = "*/5 * * * *"
	}
	if c.Sync.SourceTimeoutSec == 0 {
		c.Sync.SourceTimeoutSec = 30
	}
	if c.Sync.LockTimeoutSec == 0 {
		c.Sync.LockTimeoutSec = 120
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.MaxConversationLimit == 0 {
		c.API.MaxConversationLimit = 500
	}
	if c.API.MaxMessageLimit == 0 {
		c.API.MaxMessageLimit = 1000
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Primary.DSN == "" {
		errs = append(errs, "primary.dsn is required")
	}
	if c.ChatRace.APIURL != "" && c.ChatRace.AccountID == "" {
		errs = append(errs, "chatrace.account_id is required when chatrace.api_url is set")
	}
	if c.Sync.SourceTimeoutSec < 0 {
		errs = append(errs, "sync.source_timeout_sec must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
