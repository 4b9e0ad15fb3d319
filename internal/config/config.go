package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	LogOutput string `mapstructure:"log_output"`
	LogFile   string `mapstructure:"log_file"`

	AtlasBaseURL        string        `mapstructure:"atlas_base_url"`
	AtlasAPIKey         string        `mapstructure:"atlas_api_key"`
	AtlasTimeoutSeconds int64         `mapstructure:"atlas_timeout_seconds"`
	AtlasTimeout        time.Duration `mapstructure:"-"`

	RequestsFile         string        `mapstructure:"requests_file"`
	PublishersFile       string        `mapstructure:"publishers_file"`
	IssueIntervalSeconds int64         `mapstructure:"issue_interval"`
	IssueInterval        time.Duration `mapstructure:"-"`
	IssueConcurrency     int           `mapstructure:"issue_concurrency"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "atlas-vrc-issuer")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stdout")
	v.SetDefault("log_file", "")
	v.SetDefault("atlas_base_url", "http://localhost:3000")
	v.SetDefault("atlas_api_key", "")
	v.SetDefault("atlas_timeout_seconds", 0)
	v.SetDefault("requests_file", "./configs/requests.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("issue_interval", 300) // seconds
	v.SetDefault("issue_concurrency", 4)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/issued.db")
	v.SetDefault("storage_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates raw values and derives the duration fields.
func (cfg *Config) normalize() error {
	cfg.LogOutput = strings.ToLower(strings.TrimSpace(cfg.LogOutput))
	if cfg.LogOutput != "stdout" && cfg.LogOutput != "stderr" {
		return fmt.Errorf("invalid log_output %q (expected stdout or stderr)", cfg.LogOutput)
	}

	cfg.AtlasBaseURL = strings.TrimSpace(cfg.AtlasBaseURL)
	if err := ValidateBaseURL(cfg.AtlasBaseURL); err != nil {
		return err
	}
	if cfg.AtlasTimeoutSeconds < 0 {
		return fmt.Errorf("invalid atlas_timeout_seconds (must not be negative)")
	}
	cfg.AtlasTimeout = time.Duration(cfg.AtlasTimeoutSeconds) * time.Second

	if cfg.IssueIntervalSeconds <= 0 {
		return fmt.Errorf("invalid issue_interval (must be positive seconds)")
	}
	cfg.IssueInterval = time.Duration(cfg.IssueIntervalSeconds) * time.Second
	if cfg.IssueConcurrency <= 0 {
		return fmt.Errorf("invalid issue_concurrency (must be positive)")
	}

	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("atlas_base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid atlas_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid atlas_base_url %q (scheme must be http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid atlas_base_url %q (missing host)", raw)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	if cfg.AtlasAPIKey != "" {
		cfg.AtlasAPIKey = "***"
	}
	return cfg
}
