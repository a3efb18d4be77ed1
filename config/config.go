package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of orglogo
type Config struct {
	Resolver ResolverConfig `yaml:"resolver"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Filter   FilterConfig   `yaml:"filter"`
}

// ResolverConfig tunes fetching, probing and the strategy pipeline
type ResolverConfig struct {
	UserAgent    string        `yaml:"user_agent"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	HeadTimeout  time.Duration `yaml:"head_timeout"`
	GetTimeout   time.Duration `yaml:"get_timeout"`
	// Parallelism bounds concurrent requests to the same host
	Parallelism int `yaml:"parallelism"`
	// Workers bounds concurrent resolutions
	Workers    int      `yaml:"workers"`
	Strategies []string `yaml:"strategies"`

	Dynamic        bool          `yaml:"dynamic"`
	NavTimeout     time.Duration `yaml:"nav_timeout"`
	StableTimeout  time.Duration `yaml:"stable_timeout"`
	Settle         time.Duration `yaml:"settle"`
	BrowserDataDir string        `yaml:"browser_data_dir"`
}

// DatabaseConfig locates Postgres. An empty URL falls back to DATABASE_URL
// and the DB_* variables.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type TelegramConfig struct {
	TokenEnv     string        `yaml:"token_env"`
	AllowedUsers []int64       `yaml:"allowed_users"`
	AdminID      int64         `yaml:"admin_id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SheetsConfig struct {
	SpreadsheetURL  string `yaml:"spreadsheet_url"`
	SheetName       string `yaml:"sheet_name"`
	CredentialsFile string `yaml:"credentials_file"`
}

// FilterConfig lists domains rejected as organization websites on top of
// the built-in social network and platform list
type FilterConfig struct {
	ExcludedDomains []string `yaml:"excluded_domains"`
}

// LoadConfig loads configuration from a YAML file. Keys missing from the
// file keep their default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Resolver.FetchTimeout = 15 * time.Second
	cfg.Resolver.HeadTimeout = 3 * time.Second
	cfg.Resolver.GetTimeout = 2 * time.Second
	cfg.Resolver.Parallelism = 2
	cfg.Resolver.Workers = 4
	cfg.Resolver.Dynamic = true
	cfg.Resolver.NavTimeout = 30 * time.Second
	cfg.Resolver.StableTimeout = 10 * time.Second
	cfg.Resolver.Settle = 2 * time.Second
	cfg.Telegram.TokenEnv = "TELEGRAM_BOT_TOKEN"
	cfg.Telegram.PollInterval = 5 * time.Second
	cfg.Sheets.SheetName = "Logos"
	return cfg
}

// Validate rejects values the resolver cannot work with
func (c *Config) Validate() error {
	if c.Resolver.Workers < 1 {
		return fmt.Errorf("resolver.workers must be at least 1, got %d", c.Resolver.Workers)
	}
	if c.Resolver.Parallelism < 1 {
		return fmt.Errorf("resolver.parallelism must be at least 1, got %d", c.Resolver.Parallelism)
	}
	if c.Telegram.PollInterval <= 0 {
		return fmt.Errorf("telegram.poll_interval must be positive")
	}
	return nil
}
