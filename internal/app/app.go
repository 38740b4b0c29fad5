// Package app wires the application together: configuration, Genkit,
// the knowledge base, and the answer engine. Setup returns a container
// with embedded cleanup; call Close to release resources.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/ingest"
	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/memory"
	"github.com/prepbot/prepbot/internal/rag"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Memory    *memory.Store
	Knowledge *knowledge.Store
	Engine    *rag.Engine
}

// KnowledgeConnected reports whether the knowledge base is wired.
// When false the engine still answers, with a disclaimer.
func (a *App) KnowledgeConnected() bool {
	return a.Knowledge != nil
}

// NewIndexer builds an ingest indexer over the app's knowledge store.
func (a *App) NewIndexer() (*ingest.Indexer, error) {
	if a.Knowledge == nil {
		return nil, errKnowledgeUnavailable
	}
	return ingest.NewIndexer(ingest.IndexerConfig{
		Store:   a.Knowledge,
		Crawler: ingest.NewCrawler(0, a.Logger),
		DataDir: a.Config.IngestDataDir,
		Logger:  a.Logger,
	})
}

// Close releases the app's resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
