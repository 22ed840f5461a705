package main

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"roulette/internal/app"
	"roulette/internal/config"
	"roulette/internal/store"
	httpTransport "roulette/internal/transport/http"
)

//go:embed web/*
var webFS embed.FS

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	// Load configuration
	cfg := config.Load()

	// Set up logger
	setupLogging(cfg.Logging)
	logger := log.Logger

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Info().
		Str("env", cfg.Server.Env).
		Str("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Str("notifier", cfg.Store.Notifier).
		Msg("starting word roulette server")

	bank, err := app.LoadWordBank(cfg.Game.WordBankFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load word bank")
	}

	// Connect to the record store; there is no offline mode
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	gateway, err := store.Connect(connectCtx, cfg.Store, logger)
	cancelConnect()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to record store")
	}
	defer gateway.Close()

	// Create view hub
	tableOpts := app.DefaultTableOptions()
	tableOpts.Bank = bank
	tableOpts.Spin = app.SpinSettings{
		Interval:   cfg.Game.SpinInterval,
		MinTicks:   cfg.Game.SpinMinTicks,
		TickSpread: cfg.Game.SpinTickSpread,
	}
	tableOpts.ScrollDelay = cfg.Game.ScrollDelay
	tableOpts.ResetPassword = cfg.Game.ResetPassword
	tableOpts.StoreTimeout = cfg.Store.Timeout

	hub := app.NewHub(gateway, app.HubOptions{
		Table:          tableOpts,
		ReconnectGrace: cfg.Game.ReconnectGracePeriod,
	}, logger)
	defer hub.Close()

	// Create HTTP server
	server := httpTransport.NewServer(cfg, hub, gateway, bank, logger, webFS)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// setupLogging configures the global zerolog logger
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.SetGlobalLevel(parseLogLevel(cfg.Level))
}

func parseLogLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
