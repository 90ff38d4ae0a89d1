// Package config loads YAML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Provider ProviderConfig `yaml:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sources  SourcesConfig  `yaml:"sources"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig configures the trends provider client.
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Geo       string `yaml:"geo"`
	Timeframe string `yaml:"timeframe"`
	Timeout   string `yaml:"timeout"`
	MinDelay  string `yaml:"min_delay"`
}

// ParseTimeout returns the provider request timeout.
func (p ProviderConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ParseMinDelay returns the minimum delay between provider requests.
func (p ProviderConfig) ParseMinDelay() time.Duration {
	d, err := time.ParseDuration(p.MinDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// PipelineConfig tunes batch scoring runs.
type PipelineConfig struct {
	CacheMaxAgeDays int    `yaml:"cache_max_age_days"`
	MaxRetries      int    `yaml:"max_retries"`
	RetryBaseDelay  string `yaml:"retry_base_delay"`
	Workers         int    `yaml:"workers"`
	MaxKeywords     int    `yaml:"max_keywords"`
}

// ParseRetryBaseDelay returns the initial fetch retry backoff.
func (p PipelineConfig) ParseRetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(p.RetryBaseDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// SourcesConfig holds configuration for keyword ingestion sources.
type SourcesConfig struct {
	CreativeCenter  CreativeCenterConfig `yaml:"creative_center"`
	RSS             RSSConfig            `yaml:"rss"`
	ExcludeKeywords []string             `yaml:"exclude_keywords"`
}

// CreativeCenterConfig for the Creative Center trend feeds.
type CreativeCenterConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Limit   int    `yaml:"limit"`
}

// RSSConfig for the RSS keyword candidate collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ScheduleConfig configures daemon intervals.
type ScheduleConfig struct {
	IngestInterval string `yaml:"ingest_interval"`
	ScoreInterval  string `yaml:"score_interval"`
}

// ParseIngestInterval returns the ingestion interval.
func (s ScheduleConfig) ParseIngestInterval() time.Duration {
	d, err := time.ParseDuration(s.IngestInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ParseScoreInterval returns the scoring pipeline interval.
func (s ScheduleConfig) ParseScoreInterval() time.Duration {
	d, err := time.ParseDuration(s.ScoreInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations and the score threshold.
type AlertsConfig struct {
	MinScore int           `yaml:"min_score"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig configures the zerolog root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./trendscore.db"},
		Provider: ProviderConfig{
			Geo:       "",
			Timeframe: "today 12-m",
			Timeout:   "30s",
			MinDelay:  "1s",
		},
		Pipeline: PipelineConfig{
			CacheMaxAgeDays: 7,
			MaxRetries:      3,
			RetryBaseDelay:  "2s",
			Workers:         4,
		},
		Sources: SourcesConfig{
			CreativeCenter: CreativeCenterConfig{Enabled: true, Limit: 100},
			RSS:            RSSConfig{Enabled: false},
		},
		Schedule: ScheduleConfig{
			IngestInterval: "6h",
			ScoreInterval:  "24h",
		},
		Alerts: AlertsConfig{MinScore: 80},
		Server: ServerConfig{Port: 8080},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRENDSCORE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRENDSCORE_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("TRENDSCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
