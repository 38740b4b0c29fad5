package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prepbot/prepbot/internal/app"
	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/markup"
)

// askConversationID is the conversation used by the terminal session.
// One CLI run is one conversation.
const askConversationID = 1

// runAsk answers a single question from the command line and prints the
// rendered answer chunks to stdout.
func runAsk(cfg *config.Config, logger log.Logger, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: prepbot ask <question>")
	}

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

	answer, err := a.Engine.Answer(ctx, askConversationID, askConversationID, question)
	if err != nil {
		return fmt.Errorf("answering: %w", err)
	}

	for _, msg := range markup.FormatAndSplit(answer, cfg.MessageLimit) {
		fmt.Println(msg)
	}
	return nil
}
