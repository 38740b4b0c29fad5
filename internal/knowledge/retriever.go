package knowledge

import (
	"context"
	"strconv"

	"github.com/prepbot/prepbot/internal/rag"
)

// queryPrefix is the conventional prefix e5-family embedding models
// expect on search queries (documents get "passage: " at ingest time).
const queryPrefix = "query: "

// Retriever adapts a Store to the rag.Retriever capability.
type Retriever struct {
	store *Store
}

// NewRetriever creates the adapter.
func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// Retrieve searches the store and converts hits to pipeline documents.
// An empty index yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]rag.Document, error) {
	results, err := r.store.Search(ctx, queryPrefix+query, WithTopK(k))
	if err != nil {
		return nil, err
	}

	docs := make([]rag.Document, 0, len(results))
	for _, res := range results {
		metadata := make(map[string]string, len(res.Document.Metadata)+1)
		for k, v := range res.Document.Metadata {
			metadata[k] = v
		}
		metadata["similarity"] = strconv.FormatFloat(res.Similarity, 'f', 4, 64)
		if metadata[rag.MetaChunkID] == "" {
			metadata[rag.MetaChunkID] = res.Document.ID
		}
		docs = append(docs, rag.Document{
			Content:  res.Document.Content,
			Metadata: metadata,
		})
	}
	return docs, nil
}
