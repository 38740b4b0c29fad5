package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prepbot/prepbot/api"
	"github.com/prepbot/prepbot/internal/app"
	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/log"
)

// runServe initializes the application and starts the HTTP API server.
func runServe(cfg *config.Config, logger log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting prepbot", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	serverCfg := api.ServerConfig{
		Engine:       a.Engine,
		Memory:       a.Memory,
		MessageLimit: cfg.MessageLimit,
		Pool:         a.Pool,
		Logger:       logger,
	}
	// Assign only when connected, so a degraded app leaves the interface
	// nil instead of holding a typed nil pointer.
	if a.KnowledgeConnected() {
		serverCfg.Knowledge = a.Knowledge
	}
	srv := api.NewServer(serverCfg)
	return srv.Run(ctx, cfg.ListenAddr)
}
