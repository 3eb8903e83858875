// Package main is the entry point for the shared expense service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gitlab.com/yelinaung/expense-share/internal/api"
	"gitlab.com/yelinaung/expense-share/internal/bot"
	"gitlab.com/yelinaung/expense-share/internal/config"
	"gitlab.com/yelinaung/expense-share/internal/database"
	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/gateway/firestoredb"
	"gitlab.com/yelinaung/expense-share/internal/gateway/memory"
	"gitlab.com/yelinaung/expense-share/internal/logger"
	"gitlab.com/yelinaung/expense-share/internal/push"
	"gitlab.com/yelinaung/expense-share/internal/repository"
	"gitlab.com/yelinaung/expense-share/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("expense-share %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	logger.InitHashSalt()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Settings{
		ServiceName:    "expense-share",
		ServiceVersion: version,
		Endpoint:       cfg.OTelEndpoint,
		Protocol:       cfg.OTelProtocol,
		Stdout:         cfg.OTelStdout,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open expense store")
	}
	store = gateway.WithTracing(store, cfg.StoreBackend)
	logger.Log.Info().Str("backend", cfg.StoreBackend).Msg("Expense store ready")

	expo := push.NewExpoClient(cfg.ExpoPushURL, cfg.PushTimeout)
	broadcaster := push.NewBroadcaster(store, expo, cfg.People, cfg.DisplayCurrency)

	server := api.New(cfg, store, broadcaster)

	var telegramBot *bot.Bot
	if cfg.BotEnabled() {
		telegramBot, err = bot.New(cfg, store, broadcaster)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create bot")
		}
	} else {
		logger.Log.Info().Msg("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)
	wg.Go(func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	})
	if telegramBot != nil {
		wg.Go(func() { telegramBot.Start(ctx) })
	}

	select {
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutting down...")
	case err := <-serverErr:
		logger.Log.Error().Err(err).Msg("HTTP server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to shut down HTTP server")
	}
	wg.Wait()

	if telegramBot != nil {
		telegramBot.Stop()
	}
	broadcaster.Wait()
	closeStore()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to flush telemetry")
	}
	logger.Log.Info().Msg("Shutdown complete")
}

// openStore connects the configured backend and returns a func that releases it.
func openStore(ctx context.Context, cfg *config.Config) (gateway.Gateway, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		store, err := firestoredb.New(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to close Firestore client")
			}
		}, nil

	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Log.Info().Msg("Database initialized successfully")
		return repository.NewGateway(pool), pool.Close, nil

	case config.BackendMemory:
		logger.Log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil

	default:
		return nil, nil, errors.New("unknown store backend " + cfg.StoreBackend)
	}
}
