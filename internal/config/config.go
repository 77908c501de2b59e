package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/transcript-sentinel/")
	v.AddConfigPath("$HOME/.transcript-sentinel/")

	// Environment variable overrides, e.g. SENTINEL_SERVER_PORT
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	active = v
	return config, nil
}

// active is the viper instance backing the most recent Load, used by Watch.
var active *viper.Viper

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Privacy.ContextWindow < 0 {
		return fmt.Errorf("invalid context window: %d", config.Privacy.ContextWindow)
	}

	if config.Segmenter.MinLines < 1 {
		return fmt.Errorf("invalid segmenter min_lines: %d (must be at least 1)", config.Segmenter.MinLines)
	}

	if config.Segmenter.MinChars < 0 {
		return fmt.Errorf("invalid segmenter min_chars: %d", config.Segmenter.MinChars)
	}

	if config.Batch.MaxConversations < 0 {
		return fmt.Errorf("invalid batch max_conversations: %d", config.Batch.MaxConversations)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// revisions are reported through onError and otherwise ignored.
func Watch(callback func(*Config), onError func(error)) error {
	if active == nil {
		return errors.New("config not loaded")
	}
	if active.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}

	v := active
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal config: %w", err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration: %w", err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
