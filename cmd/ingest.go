package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prepbot/prepbot/internal/app"
	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
)

// runIngest rebuilds the knowledge index. With a URL argument it crawls
// the handbook from there; without one it reads saved pages from the
// configured data directory.
func runIngest(cfg *config.Config, logger log.Logger, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if !a.KnowledgeConnected() {
		return fmt.Errorf("ingest needs the knowledge database; check the postgres settings")
	}

	indexer, err := a.NewIndexer()
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	var added int
	if len(args) > 0 {
		added, err = indexer.RebuildFromWeb(ctx, args[0])
	} else {
		added, err = indexer.RebuildFromDir(ctx)
	}
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("indexed %d chunks\n", added)

	if stored, err := a.Knowledge.Count(ctx, knowledge.SourceTypeHandbook); err == nil {
		fmt.Printf("handbook documents stored: %d\n", stored)
	} else {
		logger.Warn("counting stored documents", "error", err)
	}
	return nil
}
