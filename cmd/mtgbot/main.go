package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Urkchar/mtg-spoilers-bot/internal/app"
	"github.com/Urkchar/mtg-spoilers-bot/internal/config"
	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "Missing or invalid setting %s: %s\n", cfgErr.Field, cfgErr.Reason)
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
