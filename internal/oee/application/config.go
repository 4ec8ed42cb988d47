package application

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	oee "oee-cloud/internal/oee/domain"
)

// RetryConfig bounds retries of store sub-queries.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Config defines engine tunables.
type Config struct {
	Timezone                string        `yaml:"timezone"`
	RollupMaxStaleness      time.Duration `yaml:"rollup_max_staleness"`
	CountTimestampThreshold int           `yaml:"count_timestamp_threshold"`
	FanoutLimit             int           `yaml:"fanout_limit"`
	RequestTimeout          time.Duration `yaml:"request_timeout"`
	Retry                   RetryConfig   `yaml:"retry"`
	DayCap                  time.Duration `yaml:"day_cap"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Timezone:                "UTC",
		RollupMaxStaleness:      15 * time.Minute,
		CountTimestampThreshold: oee.DefaultCountTimestampThreshold,
		FanoutLimit:             8,
		RequestTimeout:          30 * time.Second,
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		DayCap: 24 * time.Hour,
	}
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	cfg.Timezone = getenvDefault("OEE_TIMEZONE", cfg.Timezone)
	cfg.RollupMaxStaleness = getenvDuration("OEE_ROLLUP_MAX_STALENESS", cfg.RollupMaxStaleness)
	cfg.FanoutLimit = getenvIntDefault("OEE_FANOUT_LIMIT", cfg.FanoutLimit)
	cfg.RequestTimeout = getenvDuration("OEE_REQUEST_TIMEOUT", cfg.RequestTimeout)

	if path := os.Getenv("OEE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg = cfg.withDefaults()
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves the configured IANA timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RollupMaxStaleness < 0 {
		c.RollupMaxStaleness = 0
	}
	if c.CountTimestampThreshold <= 0 {
		c.CountTimestampThreshold = def.CountTimestampThreshold
	}
	if c.FanoutLimit <= 0 {
		c.FanoutLimit = def.FanoutLimit
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		c.Retry.MaxInterval = c.Retry.InitialInterval
	}
	if c.DayCap <= 0 {
		c.DayCap = def.DayCap
	}
	return c
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
