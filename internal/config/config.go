// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/yelinaung/expense-share/internal/models"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// DefaultExpoPushURL is the Expo push relay endpoint.
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// Config holds all configuration for the application.
type Config struct {
	StoreBackend       string
	FirestoreProjectID string
	DatabaseURL        string

	TelegramBotToken string
	HTTPAddr         string

	ExpoProjectID string
	ExpoPushURL   string
	PushTimeout   time.Duration

	BroadcastOnCreate bool
	ListOrdered       bool

	DisplayCurrency string
	People          models.Roster

	LogLevel  string
	LogFormat string

	OTelEndpoint string
	OTelProtocol string
	OTelStdout   bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreBackend:       strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND"))),
		FirestoreProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		ExpoProjectID:      os.Getenv("EXPO_PROJECT_ID"),
		ExpoPushURL:        os.Getenv("EXPO_PUSH_URL"),
		DisplayCurrency:    strings.ToUpper(strings.TrimSpace(os.Getenv("DISPLAY_CURRENCY"))),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
		OTelEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelProtocol:       os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
		OTelStdout:         os.Getenv("OTEL_STDOUT") == "true",
	}

	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendFirestore
	}
	if cfg.FirestoreProjectID == "" {
		cfg.FirestoreProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if cfg.HTTPAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		cfg.HTTPAddr = ":" + port
	}
	if cfg.ExpoPushURL == "" {
		cfg.ExpoPushURL = DefaultExpoPushURL
	}
	if cfg.DisplayCurrency == "" {
		cfg.DisplayCurrency = models.DefaultCurrency
	}
	if cfg.OTelProtocol == "" {
		cfg.OTelProtocol = "http/protobuf"
	}

	cfg.PushTimeout = 10 * time.Second
	if timeoutStr := os.Getenv("PUSH_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			cfg.PushTimeout = d
		}
	}

	cfg.BroadcastOnCreate = parseBool(os.Getenv("BROADCAST_ON_CREATE"), true)
	cfg.ListOrdered = parseBool(os.Getenv("LIST_ORDERED"), false)

	var errs []string

	cfg.People = models.DefaultRoster
	if peopleStr := os.Getenv("PEOPLE"); strings.TrimSpace(peopleStr) != "" {
		roster, err := models.ParseRoster(peopleStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PEOPLE is invalid: %v", err))
		} else {
			cfg.People = roster
		}
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() []string {
	var errs []string

	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			errs = append(errs, "FIRESTORE_PROJECT_ID (or GOOGLE_CLOUD_PROJECT) is required for the firestore backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND %q is not one of firestore, postgres, memory", c.StoreBackend))
	}

	if _, ok := models.SupportedCurrencies[c.DisplayCurrency]; !ok {
		errs = append(errs, fmt.Sprintf("DISPLAY_CURRENCY %q is not supported", c.DisplayCurrency))
	}

	switch c.OTelProtocol {
	case "http/protobuf", "grpc":
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER_OTLP_PROTOCOL %q is not one of http/protobuf, grpc", c.OTelProtocol))
	}

	return errs
}

// BotEnabled reports whether the Telegram front-end should run.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

func parseBool(s string, fallback bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return v
}
