// Package config provides configuration management for the harvester.
// It handles loading, validation, and access to configuration values from
// a YAML file and environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/chefstream/harvester/internal/logger"
)

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `yaml:"host"     mapstructure:"host"`
	Port     string `yaml:"port"     mapstructure:"port"`
	User     string `yaml:"user"     mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname"   mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode"  mapstructure:"sslmode"`
}

// Validate checks the database configuration.
func (d *Database) Validate() error {
	if d.Host == "" {
		return errors.New("database host is required")
	}
	if d.DBName == "" {
		return errors.New("database name is required")
	}
	return nil
}

// Providers holds settings for the external provider-configuration service.
type Providers struct {
	// APIURL is the base URL of the provider configuration service.
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
	// CacheTTL bounds how long fetched provider configurations are reused.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// Validate checks the providers configuration.
func (p *Providers) Validate() error {
	if p.APIURL == "" {
		return errors.New("providers api_url is required")
	}
	return nil
}

// Harvest holds orchestrator-level tunables shared by all providers.
type Harvest struct {
	// BucketCapacity is the token bucket burst capacity per provider.
	BucketCapacity int `yaml:"bucket_capacity" mapstructure:"bucket_capacity"`
	// NormalizerCacheSize bounds the ingredient normalization cache.
	NormalizerCacheSize int `yaml:"normalizer_cache_size" mapstructure:"normalizer_cache_size"`
	// NormalizerCacheTTL bounds how long cached mappings are reused.
	NormalizerCacheTTL time.Duration `yaml:"normalizer_cache_ttl" mapstructure:"normalizer_cache_ttl"`
	// RendererURL points at the headless rendering service used by
	// dynamic discovery. Empty disables dynamic providers.
	RendererURL string `yaml:"renderer_url" mapstructure:"renderer_url"`
}

// Schedule holds settings for the recurring-run scheduler.
type Schedule struct {
	// Cron is the schedule on which enabled providers are harvested.
	Cron string `yaml:"cron" mapstructure:"cron"`
}

// Config represents the application configuration.
type Config struct {
	Logger    logger.Config `yaml:"logger"    mapstructure:"logger"`
	Database  Database      `yaml:"database"  mapstructure:"database"`
	Providers Providers     `yaml:"providers" mapstructure:"providers"`
	Harvest   Harvest       `yaml:"harvest"   mapstructure:"harvest"`
	Schedule  Schedule      `yaml:"schedule"  mapstructure:"schedule"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	return nil
}

// Load reads the initialized Viper state into a Config.
// InitializeViper must have been called first.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
