package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgxQuerier is the production Querier backed by a pgx connection pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier wraps a pool in a Querier.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata, source_type)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    content     = EXCLUDED.content,
    embedding   = EXCLUDED.embedding,
    metadata    = EXCLUDED.metadata,
    source_type = EXCLUDED.source_type`

func (q *PgxQuerier) UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	_, err = q.pool.Exec(ctx, upsertDocumentSQL,
		doc.ID, doc.Content, embedding, metadata, doc.SourceType)
	return err
}

const searchDocumentsSQL = `
SELECT id, content, metadata, source_type, 1 - (embedding <=> $1) AS similarity
FROM documents
WHERE $2 = '' OR source_type = $2
ORDER BY embedding <=> $1
LIMIT $3`

func (q *PgxQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, sourceType string, limit int) ([]Result, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL, embedding, sourceType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc        Document
			metadata   []byte
			similarity float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.SourceType, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %q: %w", doc.ID, err)
			}
		}
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	return results, rows.Err()
}

const countDocumentsSQL = `
SELECT count(*) FROM documents WHERE $1 = '' OR source_type = $1`

func (q *PgxQuerier) CountDocuments(ctx context.Context, sourceType string) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, countDocumentsSQL, sourceType).Scan(&n)
	return n, err
}
