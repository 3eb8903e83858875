package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// clearEnv blanks every variable Load reads so tests don't depend on the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_BACKEND", "FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "DATABASE_URL",
		"TELEGRAM_BOT_TOKEN", "HTTP_ADDR", "PORT", "EXPO_PROJECT_ID", "EXPO_PUSH_URL",
		"PUSH_TIMEOUT", "BROADCAST_ON_CREATE", "LIST_ORDERED", "DISPLAY_CURRENCY", "PEOPLE",
		"LOG_LEVEL", "LOG_FORMAT", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_STDOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads defaults for memory backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, BackendMemory, cfg.StoreBackend)
		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, DefaultExpoPushURL, cfg.ExpoPushURL)
		require.Equal(t, 10*time.Second, cfg.PushTimeout)
		require.True(t, cfg.BroadcastOnCreate)
		require.False(t, cfg.ListOrdered)
		require.Equal(t, "VND", cfg.DisplayCurrency)
		require.Equal(t, models.DefaultRoster, cfg.People)
		require.Equal(t, "http/protobuf", cfg.OTelProtocol)
		require.False(t, cfg.BotEnabled())
	})

	t.Run("defaults to firestore and requires a project", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "FIRESTORE_PROJECT_ID")
	})

	t.Run("falls back to GOOGLE_CLOUD_PROJECT", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GOOGLE_CLOUD_PROJECT", "expense-management")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, BackendFirestore, cfg.StoreBackend)
		require.Equal(t, "expense-management", cfg.FirestoreProjectID)
	})

	t.Run("postgres requires DATABASE_URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "postgres")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL")

		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "mongo")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "mongo")
	})

	t.Run("uses PORT when HTTP_ADDR is empty", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("PORT", "9090")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, ":9090", cfg.HTTPAddr)
	})

	t.Run("parses variant flags", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("BROADCAST_ON_CREATE", "false")
		t.Setenv("LIST_ORDERED", "true")

		cfg, err := Load()
		require.NoError(t, err)
		require.False(t, cfg.BroadcastOnCreate)
		require.True(t, cfg.ListOrdered)
	})

	t.Run("invalid flags keep defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("BROADCAST_ON_CREATE", "maybe")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, cfg.BroadcastOnCreate)
	})

	t.Run("parses push timeout", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("PUSH_TIMEOUT", "3s")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 3*time.Second, cfg.PushTimeout)
	})

	t.Run("ignores invalid push timeout", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("PUSH_TIMEOUT", "-1s")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 10*time.Second, cfg.PushTimeout)
	})

	t.Run("parses people override", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("PEOPLE", "a:Alice:#fff,b:Bob")

		cfg, err := Load()
		require.NoError(t, err)
		require.Len(t, cfg.People, 2)
		require.Equal(t, "Alice", cfg.People.Label("a"))
	})

	t.Run("aggregates validation errors", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "postgres")
		t.Setenv("PEOPLE", "a,a")
		t.Setenv("DISPLAY_CURRENCY", "XXX")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "PEOPLE")
		require.Contains(t, err.Error(), "DATABASE_URL")
		require.Contains(t, err.Error(), "DISPLAY_CURRENCY")
	})

	t.Run("rejects unknown otel protocol", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "thrift")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "thrift")
	})

	t.Run("bot enabled with token", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("TELEGRAM_BOT_TOKEN", "test-token-123")

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, cfg.BotEnabled())
	})
}
