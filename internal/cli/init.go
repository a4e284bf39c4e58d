// Package cli holds the bootstrap steps shared by cmd/ledgerly and
// cmd/ledgerly-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledgerly/internal/config"
	"ledgerly/internal/gateway"
	"ledgerly/internal/gateway/gemini"
	"ledgerly/internal/log"
)

// SetupLogger builds the process logger at level and makes it the slog
// default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: log.ComponentApp})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it is
// invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, or when
// the returned stop function is called.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}

// NewGenerator returns the Gemini client when an API key is configured and
// the disabled generator otherwise. A client that cannot be built is logged
// and treated as disabled.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *log.Logger) gateway.Generator {
	if !cfg.AIEnabled() {
		logger.Warn("GEMINI_API_KEY not set, AI features return fallback values")
		return gateway.Disabled{}
	}
	client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("Failed to create Gemini client", log.FieldError, err)
		return gateway.Disabled{}
	}
	logger.Info("Gemini client ready", "model", client.Model())
	return client
}
