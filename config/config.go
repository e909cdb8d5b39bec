package config

import (
	"time"

	"sevadesk/internal/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Environment        string `mapstructure:"ENVIRONMENT"`
	APIBaseURL         string `mapstructure:"API_BASE_URL"`
	APIKey             string `mapstructure:"API_KEY"`
	RequestTimeoutMS   int    `mapstructure:"REQUEST_TIMEOUT_MS"`
	RetryBaseDelayMS   int    `mapstructure:"RETRY_BASE_DELAY_MS"`
	RetryMaxDelayMS    int    `mapstructure:"RETRY_MAX_DELAY_MS"`
	RetryMaxAttempts   int    `mapstructure:"RETRY_MAX_ATTEMPTS"`
	QueueDBPath        string `mapstructure:"QUEUE_DB_PATH"`
	ProbeIntervalSec   int    `mapstructure:"PROBE_INTERVAL_SEC"`
	ProbeEnabled       bool   `mapstructure:"PROBE_ENABLED"`
	SuggestionLimit    int    `mapstructure:"SUGGESTION_LIMIT"`
	ReadCacheTTLSec    int    `mapstructure:"READ_CACHE_TTL_SEC"`
	DrainOnStart       bool   `mapstructure:"DRAIN_ON_START"`
	SchedulerEnabled   bool   `mapstructure:"SCHEDULER_ENABLED"`
}

func New() (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	envVars := []string{
		"ENVIRONMENT", "API_BASE_URL", "API_KEY",
		"REQUEST_TIMEOUT_MS", "RETRY_BASE_DELAY_MS", "RETRY_MAX_DELAY_MS", "RETRY_MAX_ATTEMPTS",
		"QUEUE_DB_PATH", "PROBE_INTERVAL_SEC", "PROBE_ENABLED",
		"SUGGESTION_LIMIT", "READ_CACHE_TTL_SEC", "DRAIN_ON_START", "SCHEDULER_ENABLED",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	if viper.IsSet("API_BASE_URL") {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	applyDefaults(&config)

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"apiBaseURL", config.APIBaseURL,
		"queueDBPath", config.QueueDBPath,
		"probeIntervalSec", config.ProbeIntervalSec,
	)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.RequestTimeoutMS <= 0 {
		config.RequestTimeoutMS = 10_000
	}
	if config.RetryBaseDelayMS <= 0 {
		config.RetryBaseDelayMS = 500
	}
	if config.RetryMaxDelayMS <= 0 {
		config.RetryMaxDelayMS = 30_000
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = 5
	}
	if config.QueueDBPath == "" {
		config.QueueDBPath = "sevadesk-queue.db"
	}
	if config.ProbeIntervalSec <= 0 {
		config.ProbeIntervalSec = 20
	}
	if config.SuggestionLimit <= 0 {
		config.SuggestionLimit = 10
	}
	if config.ReadCacheTTLSec <= 0 {
		config.ReadCacheTTLSec = 30
	}
}

func validateConfig(config Config, log logger.Logger) error {
	if config.APIBaseURL == "" {
		return log.Error("Fatal error: API_BASE_URL is required")
	}
	if config.RetryBaseDelayMS > config.RetryMaxDelayMS {
		return log.Error(
			"Fatal error: retry base delay exceeds max delay",
			"baseMS", config.RetryBaseDelayMS,
			"maxMS", config.RetryMaxDelayMS,
		)
	}
	return nil
}

// RequestTimeout is the per-call transport timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

func (c Config) ReadCacheTTL() time.Duration {
	return time.Duration(c.ReadCacheTTLSec) * time.Second
}
