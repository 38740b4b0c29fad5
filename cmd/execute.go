// Package cmd implements the prepbot CLI. Following the pattern used by
// kubectl and hugo, all application logic lives here and main.go stays
// a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the CLI entry point: it routes the first argument to a
// subcommand. version and help work even when configuration is invalid.
func Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		return nil
	}

	switch args[0] {
	case "version", "--version", "-v":
		printVersionInfo()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	switch args[0] {
	case "serve":
		return runServe(cfg, logger)
	case "ask":
		return runAsk(cfg, logger, args[1:])
	case "ingest":
		return runIngest(cfg, logger, args[1:])
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// initLogger builds the structured logger. DEBUG in the environment
// enables debug level; PREPBOT_LOG_JSON switches to JSON output.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("PREPBOT_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

func printVersionInfo() {
	fmt.Printf("prepbot v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("prepbot - interview preparation assistant")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  prepbot serve                 Start the HTTP API server")
	fmt.Println("  prepbot ask <question>        Ask one question from the terminal")
	fmt.Println("  prepbot ingest [url]          Rebuild the knowledge index")
	fmt.Println("                                (from the data dir, or by crawling url)")
	fmt.Println("  prepbot version               Show version information")
	fmt.Println("  prepbot help                  Show this help")
	fmt.Println()
	fmt.Println("Configuration comes from ~/.prepbot/config.yaml and PREPBOT_*")
	fmt.Println("environment variables. Set PREPBOT_GEMINI_API_KEY (or switch")
	fmt.Println("PREPBOT_PROVIDER to ollama) before first use.")
}
