package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Normalizer cache defaults.
const (
	defaultBucketCapacity      = 5
	defaultNormalizerCacheSize = 1000
	defaultNormalizerCacheTTL  = "15m"
	defaultProvidersCacheTTL   = "5m"
)

// InitializeViper initializes Viper configuration from environment variables
// and config files. This must be called before Load().
func InitializeViper(cfgFile string) error {
	loadEnvFile()
	setupViper(cfgFile)
	setDefaults()
	readConfigFile()
	return nil
}

// loadEnvFile loads a .env file if present.
func loadEnvFile() {
	_ = godotenv.Load()
}

// setupViper configures Viper for environment variable and config file reading.
func setupViper(cfgFile string) {
	viper.SetEnvPrefix("harvester")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/harvester")
}

// readConfigFile reads the config file, ignoring a missing file. Every
// setting has a default or an environment override.
func readConfigFile() {
	_ = viper.ReadInConfig()
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})

	viper.SetDefault("database", map[string]any{
		"host":    "localhost",
		"port":    "5432",
		"user":    "harvester",
		"dbname":  "harvester",
		"sslmode": "disable",
	})

	viper.SetDefault("providers", map[string]any{
		"cache_ttl": defaultProvidersCacheTTL,
	})

	viper.SetDefault("harvest", map[string]any{
		"bucket_capacity":       defaultBucketCapacity,
		"normalizer_cache_size": defaultNormalizerCacheSize,
		"normalizer_cache_ttl":  defaultNormalizerCacheTTL,
	})

	viper.SetDefault("schedule", map[string]any{
		"cron": "0 */6 * * *",
	})
}
