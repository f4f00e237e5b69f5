// Package config loads settings from an optional YAML file overlaid by
// environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Metadata providers
const (
	ProviderOEmbed  = "oembed"
	ProviderDataAPI = "dataapi"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string `yaml:"database_url"`
	RedisURL         string `yaml:"redis_url"`
	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int    `yaml:"rabbitmq_prefetch"`

	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int64         `yaml:"cache_max_entries"`

	MetadataProvider    string        `yaml:"metadata_provider"`
	MetadataTimeout     time.Duration `yaml:"metadata_timeout"`
	MetadataRate        string        `yaml:"metadata_rate"`
	MetadataConcurrency int           `yaml:"metadata_concurrency"`
	YouTube             YouTubeConfig `yaml:"youtube"`

	SweepDelay        time.Duration `yaml:"sweep_delay"`
	RetryBase         time.Duration `yaml:"retry_base"`
	GCInterval        time.Duration `yaml:"gc_interval"`
	GCBatchSize       int           `yaml:"gc_batch_size"`
	DLQRetention      time.Duration `yaml:"dlq_retention"`
	DLQPurgeInterval  time.Duration `yaml:"dlq_purge_interval"`
	HealthPort        string        `yaml:"health_port"`
	DebugMode         bool          `yaml:"debug_mode"`
	LogFormat         string        `yaml:"log_format"`
	OTELEnabled       bool          `yaml:"otel_enabled"`
	OTELEndpoint      string        `yaml:"otel_endpoint"`
	ShutdownGraceTime time.Duration `yaml:"shutdown_grace_time"`
}

// YouTubeConfig holds Data API credentials. Either APIKey or the full OAuth
// refresh-token triple is needed when the Data API provider is selected.
type YouTubeConfig struct {
	APIKey            string `yaml:"api_key"`
	OAuthClientID     string `yaml:"oauth_client_id"`
	OAuthClientSecret string `yaml:"oauth_client_secret"`
	OAuthRefreshToken string `yaml:"oauth_refresh_token"`
}

// HasOAuth reports whether refresh-token credentials are configured
func (y YouTubeConfig) HasOAuth() bool {
	return y.OAuthClientID != "" && y.OAuthClientSecret != "" && y.OAuthRefreshToken != ""
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		RabbitMQPrefetch:    1,
		CacheTTL:            30 * time.Second,
		CacheMaxEntries:     10000,
		MetadataProvider:    ProviderOEmbed,
		MetadataTimeout:     5 * time.Second,
		MetadataRate:        "10-S",
		MetadataConcurrency: 4,
		SweepDelay:          5 * time.Second,
		RetryBase:           10 * time.Second,
		GCInterval:          time.Hour,
		GCBatchSize:         200,
		DLQRetention:        7 * 24 * time.Hour,
		DLQPurgeInterval:    time.Hour,
		HealthPort:          "8081",
		LogFormat:           "json",
		ShutdownGraceTime:   10 * time.Second,
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// CONFIG_FILE is consulted, and with neither only defaults and environment
// apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.RabbitMQURL = getEnv("RABBITMQ_URL", c.RabbitMQURL)
	c.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", c.RabbitMQPrefetch)

	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheMaxEntries = int64(getEnvInt("CACHE_MAX_ENTRIES", int(c.CacheMaxEntries)))

	c.MetadataProvider = getEnv("METADATA_PROVIDER", c.MetadataProvider)
	c.MetadataTimeout = getEnvDuration("METADATA_TIMEOUT", c.MetadataTimeout)
	c.MetadataRate = getEnv("METADATA_RATE", c.MetadataRate)
	c.MetadataConcurrency = getEnvInt("METADATA_CONCURRENCY", c.MetadataConcurrency)
	c.YouTube.APIKey = getEnv("YOUTUBE_API_KEY", c.YouTube.APIKey)
	c.YouTube.OAuthClientID = getEnv("YOUTUBE_OAUTH_CLIENT_ID", c.YouTube.OAuthClientID)
	c.YouTube.OAuthClientSecret = getEnv("YOUTUBE_OAUTH_CLIENT_SECRET", c.YouTube.OAuthClientSecret)
	c.YouTube.OAuthRefreshToken = getEnv("YOUTUBE_OAUTH_REFRESH_TOKEN", c.YouTube.OAuthRefreshToken)

	c.SweepDelay = getEnvDuration("SWEEP_DELAY", c.SweepDelay)
	c.RetryBase = getEnvDuration("RETRY_BASE", c.RetryBase)
	c.GCInterval = getEnvDuration("GC_INTERVAL", c.GCInterval)
	c.GCBatchSize = getEnvInt("GC_BATCH_SIZE", c.GCBatchSize)
	c.DLQRetention = getEnvDuration("DLQ_RETENTION", c.DLQRetention)
	c.DLQPurgeInterval = getEnvDuration("DLQ_PURGE_INTERVAL", c.DLQPurgeInterval)
	c.HealthPort = getEnv("HEALTH_PORT", c.HealthPort)
	c.DebugMode = getEnvBool("DEBUG_MODE", c.DebugMode)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.OTELEnabled = getEnvBool("OTEL_ENABLED", c.OTELEnabled)
	c.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTELEndpoint)
	c.ShutdownGraceTime = getEnvDuration("SHUTDOWN_GRACE_TIME", c.ShutdownGraceTime)
}

// Validate checks settings every command needs
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.MetadataProvider {
	case ProviderOEmbed:
	case ProviderDataAPI:
		if c.YouTube.APIKey == "" && !c.YouTube.HasOAuth() {
			return errors.New("the dataapi metadata provider needs YOUTUBE_API_KEY or YOUTUBE_OAUTH_CLIENT_ID, YOUTUBE_OAUTH_CLIENT_SECRET and YOUTUBE_OAUTH_REFRESH_TOKEN")
		}
	default:
		return fmt.Errorf("unsupported METADATA_PROVIDER %q", c.MetadataProvider)
	}
	if c.MetadataTimeout <= 0 {
		return errors.New("METADATA_TIMEOUT must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// ValidateWorker checks the extra settings the queue worker needs
func (c *Config) ValidateWorker() error {
	if c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required for the worker")
	}
	if c.GCInterval <= 0 {
		return errors.New("GC_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
