package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	content := `
server:
  port: 9090
  rate_limit_rps: 5
  allowed_origins:
    - "https://app.lumenlab.dev"
    - "http://localhost:3000"

storage:
  driver: sqlite
  path: "./data/test.db"
  max_check_history: 500

streak:
  timezone: "UTC"

aura:
  default_preset: "conservative"

reminder:
  check_interval: 30m
  at_risk_hour: 20

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

logging:
  level: "debug"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimitRPS != 5 {
		t.Errorf("Unexpected rate limit: %v", cfg.Server.RateLimitRPS)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 allowed origins, got %d", len(cfg.Server.AllowedOrigins))
	}
	if cfg.Storage.MaxCheckHistory != 500 {
		t.Errorf("Unexpected check history cap: %d", cfg.Storage.MaxCheckHistory)
	}
	if cfg.Aura.DefaultPreset != "conservative" {
		t.Errorf("Unexpected preset: %q", cfg.Aura.DefaultPreset)
	}
	if cfg.Reminder.CheckInterval != 30*time.Minute {
		t.Errorf("Unexpected check interval: %v", cfg.Reminder.CheckInterval)
	}

	// Defaults fill everything the file leaves out
	if cfg.Server.RateLimitBurst != 20 {
		t.Errorf("Unexpected default burst: %d", cfg.Server.RateLimitBurst)
	}
	if cfg.Storage.MaxDrawHistory != 1000 {
		t.Errorf("Unexpected default draw history cap: %d", cfg.Storage.MaxDrawHistory)
	}
	if cfg.Reminder.DigestHour != 21 {
		t.Errorf("Unexpected default digest hour: %d", cfg.Reminder.DigestHour)
	}
	if cfg.Telegram.MaxRetries != 3 {
		t.Errorf("Unexpected default max retries: %d", cfg.Telegram.MaxRetries)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without a file failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Unexpected default driver: %q", cfg.Storage.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

// validConfig returns a configuration that passes Validate; cases
// mutate one field at a time.
func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			RequestTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          "sqlite",
			Path:            "./data/test.db",
			MaxCheckHistory: 1000,
			MaxDrawHistory:  1000,
		},
		Streak: StreakConfig{Timezone: "UTC"},
		Aura:   AuraConfig{DefaultPreset: "moderate"},
		Reminder: ReminderConfig{
			Enabled:       true,
			CheckInterval: time.Hour,
			AtRiskHour:    18,
			DigestHour:    21,
		},
		Telegram: TelegramConfig{
			Enabled:    false,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid baseline",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero rate limit",
			mutate:  func(c *Config) { c.Server.RateLimitRPS = 0 },
			wantErr: true,
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "etcd" },
			wantErr: true,
		},
		{
			name: "postgres driver without dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.DSN = ""
			},
			wantErr: true,
		},
		{
			name: "postgres driver with dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.DSN = "postgres://lumenos@localhost:5432/lumenos"
			},
			wantErr: false,
		},
		{
			name:    "check history too small",
			mutate:  func(c *Config) { c.Storage.MaxCheckHistory = 5 },
			wantErr: true,
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Streak.Timezone = "Mars/Olympus" },
			wantErr: true,
		},
		{
			name:    "empty preset",
			mutate:  func(c *Config) { c.Aura.DefaultPreset = "" },
			wantErr: true,
		},
		{
			name:    "at risk hour out of range",
			mutate:  func(c *Config) { c.Reminder.AtRiskHour = 24 },
			wantErr: true,
		},
		{
			name:    "reminder interval too short",
			mutate:  func(c *Config) { c.Reminder.CheckInterval = 10 * time.Second },
			wantErr: true,
		},
		{
			name: "disabled reminder skips its checks",
			mutate: func(c *Config) {
				c.Reminder.Enabled = false
				c.Reminder.CheckInterval = 0
			},
			wantErr: false,
		},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "chat"
			},
			wantErr: true,
		},
		{
			name: "telegram fully configured",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.BotToken = "token"
				c.Telegram.ChatID = "chat"
			},
			wantErr: false,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("ListenAddr() = %q", got)
	}
}
