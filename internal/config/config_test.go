package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_TOKEN", "DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET", "DISCORD_REDIRECT_URI",
		"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "STORE_TIMEOUT",
		"WEB_BIND", "JWT_SECRET", "TIMEZONE", "DEFAULT_FORM", "FORMS_FILE",
		"REMINDER_IDLE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "tripledger.db", cfg.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 6*time.Hour, cfg.ReminderIdle)
	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, "http://localhost:3000", cfg.WebUIBaseURL)
	assert.Equal(t, "daily", cfg.DefaultForm)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.False(t, cfg.OAuthEnabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/tripledger")
	t.Setenv("STORE_TIMEOUT", "3s")
	t.Setenv("REMINDER_IDLE", "0")
	t.Setenv("DISCORD_CLIENT_ID", "id")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
	t.Setenv("DISCORD_REDIRECT_URI", "https://ledger.example.com/api/auth/callback")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DEFAULT_FORM", "Booking")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, time.Duration(0), cfg.ReminderIdle)
	assert.Equal(t, "https://ledger.example.com", cfg.WebUIBaseURL)
	assert.Equal(t, "booking", cfg.DefaultForm)
	assert.True(t, cfg.OAuthEnabled())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"bad duration", map[string]string{"STORE_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"STORE_TIMEOUT": "0s"}},
		{"short secret", map[string]string{"JWT_SECRET": "abc"}},
		{"half oauth", map[string]string{"DISCORD_CLIENT_ID": "id"}},
		{"bad bind", map[string]string{"WEB_BIND": "localhost"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"missing forms file", map[string]string{"FORMS_FILE": "/nonexistent/forms.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(&Config{LogLevel: level})
		require.NoError(t, err, level)
		lvl, err := zapcore.ParseLevel(level)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(lvl))
		assert.False(t, logger.Core().Enabled(lvl-1), "nothing below %s", level)
	}
	_, err := NewLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestExtractBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", extractBaseURL("not a url"))
	assert.Equal(t, "https://a.example:8443", extractBaseURL("https://a.example:8443/cb"))
}
