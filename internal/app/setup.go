package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"golang.org/x/time/rate"

	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/database"
	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/memory"
	"github.com/prepbot/prepbot/internal/rag"
)

var errKnowledgeUnavailable = errors.New("knowledge base is not available")

// Model-call throttle. Free-tier Gemini quotas sit well below this, so
// the retry path still matters; the limiter just smooths bursts.
const (
	modelCallInterval = 500 * time.Millisecond
	modelCallBurst    = 2
)

// Setup creates and initializes the application. A missing or
// unreachable database is not fatal: the app comes up without a
// knowledge base and the engine discloses that in its answers.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.connectKnowledge(ctx)

	generator, err := rag.NewGenkitGenerator(g, cfg.ModelName)
	if err != nil {
		return nil, err
	}

	a.Memory = memory.NewStore(cfg.HistorySize)

	engineCfg := rag.Config{
		Generator:       generator,
		Memory:          a.Memory,
		Logger:          logger,
		RateLimiter:     rate.NewLimiter(rate.Every(modelCallInterval), modelCallBurst),
		ContextMaxChars: cfg.ContextMaxChars,
		TopK:            cfg.TopK,
	}
	if a.Knowledge != nil {
		engineCfg.Retriever = knowledge.NewRetriever(a.Knowledge)
	}
	engine, err := rag.New(engineCfg)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	return a, nil
}

// connectKnowledge migrates and opens the knowledge database. Failure
// degrades to no knowledge base instead of aborting startup.
func (a *App) connectKnowledge(ctx context.Context) {
	dsn := a.Config.Postgres.DSN()

	if err := database.Migrate(dsn); err != nil {
		a.Logger.Warn("knowledge base unavailable, answering without retrieval", "error", err)
		return
	}
	pool, err := database.Open(ctx, dsn)
	if err != nil {
		a.Logger.Warn("knowledge base unavailable, answering without retrieval", "error", err)
		return
	}

	a.Pool = pool
	a.Knowledge = knowledge.New(knowledge.NewPgxQuerier(pool), a.Embedder, a.Logger)
	a.Logger.Info("knowledge base connected", "host", a.Config.Postgres.Host, "db", a.Config.Postgres.DBName)
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration; there is no discovery.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Ollama keys embedders by server address, Gemini by model.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
