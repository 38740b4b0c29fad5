// Package knowledge stores document chunks with vector embeddings in
// PostgreSQL + pgvector and serves similarity search over them.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

const defaultTopK = 5

// Querier defines the database operations the store needs. The
// interface lives with its consumer so tests can substitute a mock and
// the pgx implementation stays swappable.
type Querier interface {
	UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, sourceType string, limit int) ([]Result, error)
	CountDocuments(ctx context.Context, sourceType string) (int64, error)
}

// Embedder is the slice of ai.Embedder the store consumes.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// Store manages knowledge documents: it embeds content on write and
// embeds queries on search. Safe for concurrent use.
type Store struct {
	queries  Querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default.
func New(querier Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Add embeds and upserts one document.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	if doc.SourceType == "" {
		doc.SourceType = SourceTypeHandbook
	}
	if err := s.queries.UpsertDocument(ctx, doc, embedding); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document stored", "id", doc.ID, "source_type", doc.SourceType)
	return nil
}

// AddBatch adds documents one by one, stopping at the first failure.
func (s *Store) AddBatch(ctx context.Context, docs []Document) (int, error) {
	for i, doc := range docs {
		if err := s.Add(ctx, doc); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

// Search embeds the query and returns the nearest documents by cosine
// similarity, best first.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	options := searchOptions{topK: defaultTopK}
	for _, opt := range opts {
		opt(&options)
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := s.queries.SearchDocuments(ctx, embedding, options.sourceType, options.topK)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	return results, nil
}

// Count reports how many documents are stored, optionally filtered by
// source type ("" counts everything).
func (s *Store) Count(ctx context.Context, sourceType string) (int64, error) {
	n, err := s.queries.CountDocuments(ctx, sourceType)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// embed runs one text through the embedder and unwraps the vector.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embedder returned no embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
