package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlas-sanctum/vrc-issuer/internal/app"
	"github.com/atlas-sanctum/vrc-issuer/internal/config"
	"github.com/atlas-sanctum/vrc-issuer/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "issuer start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("issuer starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	issuer, err := app.NewIssuer(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize issuer", "error", err)
		return err
	}
	defer issuer.Close()

	if err := issuer.Run(ctx); err != nil {
		return fmt.Errorf("issuer run: %w", err)
	}

	return nil
}
