package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	// Timezones resolve even where the host has no zoneinfo.
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var validate = validator.New()

type Config struct {
	// Discord Bot. Empty disables the bot.
	DiscordToken string

	// Discord OAuth2
	DiscordClientID     string `validate:"required_with=DiscordClientSecret"`
	DiscordClientSecret string `validate:"required_with=DiscordClientID"`
	DiscordRedirectURI  string `validate:"omitempty,url"`

	// Storage
	StoreDriver  string        `validate:"oneof=memory sqlite postgres"`
	DatabaseURL  string        `validate:"required_if=StoreDriver postgres"`
	SQLitePath   string        `validate:"required_if=StoreDriver sqlite"`
	StoreTimeout time.Duration `validate:"gt=0"`

	// Web Server
	WebBind      string `validate:"required,hostname_port"`
	WebUIBaseURL string

	// Session
	JWTSecret string `validate:"required,min=8"`

	// Drafts
	Timezone     string        `validate:"required"`
	DefaultForm  string        `validate:"required"`
	FormsFile    string        `validate:"omitempty,file"`
	ReminderIdle time.Duration `validate:"gte=0"`

	LogLevel string `validate:"oneof=debug info warn error"`

	// Resolved from Timezone by Validate.
	Location *time.Location
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		StoreDriver:         strings.ToLower(getEnvDefault("STORE_DRIVER", "sqlite")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          getEnvDefault("SQLITE_PATH", "tripledger.db"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		JWTSecret:           getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		Timezone:            getEnvDefault("TIMEZONE", "Asia/Kolkata"),
		DefaultForm:         strings.ToLower(getEnvDefault("DEFAULT_FORM", "daily")),
		FormsFile:           os.Getenv("FORMS_FILE"),
		LogLevel:            strings.ToLower(getEnvDefault("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.StoreTimeout, err = getDurationDefault("STORE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReminderIdle, err = getDurationDefault("REMINDER_IDLE", 6*time.Hour); err != nil {
		return nil, err
	}

	// Extract base URL from redirect URI
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and resolves the timezone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

// OAuthEnabled reports whether Discord login is configured for the web API.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// NewLogger builds the process logger; debug level switches to the
// development encoder.
func NewLogger(c *Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.LogLevel == "debug" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
