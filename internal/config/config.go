package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Storage
	DatabasePath         string `env:"DATABASE_PATH" envDefault:"./data/smsfirewall.db" validate:"required"`
	PlatformDatabasePath string `env:"PLATFORM_DATABASE_PATH" envDefault:"./data/sms.db" validate:"required"`

	// Whether the app holds the default SMS handler role at startup
	DefaultHandler bool `env:"DEFAULT_HANDLER" envDefault:"true"`

	// Telegram (optional, notifications go to the log without it)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID" validate:"required_with=TelegramToken"`

	// SMS-to-email gateway (optional)
	GatewayEmail        string        `env:"GATEWAY_EMAIL" validate:"omitempty,email"`
	GatewayPassword     string        `env:"GATEWAY_PASSWORD" validate:"required_with=GatewayEmail"`
	GatewayIMAPServer   string        `env:"GATEWAY_IMAP_SERVER" validate:"omitempty,hostname_port"`
	GatewayMailbox      string        `env:"GATEWAY_MAILBOX" envDefault:"INBOX"`
	GatewayBodySelector string        `env:"GATEWAY_BODY_SELECTOR"`
	GatewayPollInterval time.Duration `env:"GATEWAY_POLL_INTERVAL" envDefault:"1m" validate:"min=5s"`
	IMAPDialTimeout     time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s" validate:"min=1s"`

	// Trash retention, 0 keeps trash until purged by hand
	TrashRetention time.Duration `env:"TRASH_RETENTION" envDefault:"0" validate:"min=0"`
	TrashSweepCron string        `env:"TRASH_SWEEP_CRON" envDefault:"0 3 * * *"`

	// Pipeline
	NotifySpam    bool `env:"NOTIFY_SPAM" envDefault:"false"`
	TrustedBypass bool `env:"TRUSTED_BYPASS" envDefault:"false"`
	QueueSize     int  `env:"QUEUE_SIZE" envDefault:"64" validate:"min=1,max=10000"`

	// User settings defaults
	ShowUnreadBadges           bool   `env:"SHOW_UNREAD_BADGES" envDefault:"true"`
	NotificationContentVisible bool   `env:"NOTIFICATION_CONTENT_VISIBLE" envDefault:"true"`
	ChatBackground             string `env:"CHAT_BACKGROUND" envDefault:"classic" validate:"oneof=classic ocean mint sunset"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"` // "json" or "text"
}

// TelegramEnabled returns true if the Telegram bot is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// GatewayEnabled returns true if the SMS-to-email gateway is configured
func (c *Config) GatewayEnabled() bool {
	return c.GatewayEmail != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return parse(env.Options{})
}

// Parse builds a configuration from an explicit environment
func Parse(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
