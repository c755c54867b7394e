package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Streak   StreakConfig   `mapstructure:"streak"`
	Aura     AuraConfig     `mapstructure:"aura"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	Driver          string `mapstructure:"driver"` // sqlite or postgres
	Path            string `mapstructure:"path"`   // sqlite database file
	DSN             string `mapstructure:"dsn"`    // postgres connection string
	MaxCheckHistory int    `mapstructure:"max_check_history"`
	MaxDrawHistory  int    `mapstructure:"max_draw_history"`
}

// StreakConfig holds streak derivation configuration
type StreakConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// AuraConfig holds AURA evaluation configuration
type AuraConfig struct {
	DefaultPreset string `mapstructure:"default_preset"`
}

// ReminderConfig holds the background reminder loop configuration
type ReminderConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	AtRiskHour    int           `mapstructure:"at_risk_hour"`
	DigestHour    int           `mapstructure:"digest_hour"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An
// empty path skips the file and runs on defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable override; nested keys map to
	// underscored names (telegram.bot_token -> LUMENOS_TELEGRAM_BOT_TOKEN).
	v.SetEnvPrefix("LUMENOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.request_timeout", "30s")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/lumenos.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_check_history", 1000)
	v.SetDefault("storage.max_draw_history", 1000)

	// Streak defaults
	v.SetDefault("streak.timezone", "UTC")

	// Aura defaults
	v.SetDefault("aura.default_preset", "moderate")

	// Reminder defaults
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.check_interval", "1h")
	v.SetDefault("reminder.at_risk_hour", 18)
	v.SetDefault("reminder.digest_hour", 21)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("server.rate_limit_rps must be positive")
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("server.rate_limit_burst must be at least 1")
	}
	if c.Server.RequestTimeout < 1*time.Second {
		return fmt.Errorf("server.request_timeout must be at least 1 second")
	}

	// Validate Storage config
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres")
	}
	if c.Storage.MaxCheckHistory < 10 {
		return fmt.Errorf("storage.max_check_history must be at least 10")
	}
	if c.Storage.MaxDrawHistory < 10 {
		return fmt.Errorf("storage.max_draw_history must be at least 10")
	}

	// Validate Streak config
	if c.Streak.Timezone == "" {
		return fmt.Errorf("streak.timezone is required")
	}
	if _, err := time.LoadLocation(c.Streak.Timezone); err != nil {
		return fmt.Errorf("streak.timezone is not a valid location: %w", err)
	}

	// Validate Aura config
	if c.Aura.DefaultPreset == "" {
		return fmt.Errorf("aura.default_preset is required")
	}

	// Validate Reminder config
	if c.Reminder.Enabled {
		if c.Reminder.CheckInterval < 1*time.Minute {
			return fmt.Errorf("reminder.check_interval must be at least 1 minute")
		}
		if c.Reminder.AtRiskHour < 0 || c.Reminder.AtRiskHour > 23 {
			return fmt.Errorf("reminder.at_risk_hour must be between 0 and 23")
		}
		if c.Reminder.DigestHour < 0 || c.Reminder.DigestHour > 23 {
			return fmt.Errorf("reminder.digest_hour must be between 0 and 23")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
		if c.Telegram.RetryDelay < 1*time.Second {
			return fmt.Errorf("telegram.retry_delay must be at least 1 second")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "dev": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, dev")
	}

	return nil
}

// ListenAddr joins the configured address and port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}
