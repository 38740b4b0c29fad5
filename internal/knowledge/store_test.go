package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/prepbot/prepbot/internal/log"
)

// mockQuerier records calls and returns canned data.
type mockQuerier struct {
	upserts    []Document
	results    []Result
	searchErr  error
	lastSource string
	lastLimit  int
}

func (m *mockQuerier) UpsertDocument(_ context.Context, doc Document, _ pgvector.Vector) error {
	m.upserts = append(m.upserts, doc)
	return nil
}

func (m *mockQuerier) SearchDocuments(_ context.Context, _ pgvector.Vector, sourceType string, limit int) ([]Result, error) {
	m.lastSource = sourceType
	m.lastLimit = limit
	return m.results, m.searchErr
}

func (m *mockQuerier) CountDocuments(_ context.Context, _ string) (int64, error) {
	return int64(len(m.upserts)), nil
}

// mockEmbedder returns a fixed vector and records inputs.
type mockEmbedder struct {
	inputs []string
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	for _, d := range req.Input {
		if len(d.Content) > 0 {
			m.inputs = append(m.inputs, d.Content[0].Text)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

func TestStoreAdd(t *testing.T) {
	t.Parallel()

	q := &mockQuerier{}
	s := New(q, &mockEmbedder{}, log.NewNop())

	err := s.Add(context.Background(), Document{
		ID:      "chunk-1",
		Content: "passage: virtual functions dispatch through vtables",
		Metadata: map[string]string{
			"title": "Virtual functions",
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if len(q.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(q.upserts))
	}
	if q.upserts[0].SourceType != SourceTypeHandbook {
		t.Errorf("source type = %q, want default handbook", q.upserts[0].SourceType)
	}
}

func TestStoreAddRequiresID(t *testing.T) {
	t.Parallel()

	s := New(&mockQuerier{}, &mockEmbedder{}, log.NewNop())
	if err := s.Add(context.Background(), Document{Content: "no id"}); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestStoreAddEmbedderFailure(t *testing.T) {
	t.Parallel()

	embErr := errors.New("503 unavailable")
	s := New(&mockQuerier{}, &mockEmbedder{err: embErr}, log.NewNop())

	err := s.Add(context.Background(), Document{ID: "x", Content: "y"})
	if !errors.Is(err, embErr) {
		t.Errorf("err = %v, want wrapped embedder error", err)
	}
}

func TestStoreSearchOptions(t *testing.T) {
	t.Parallel()

	q := &mockQuerier{results: []Result{
		{Document: Document{ID: "a", Content: "text"}, Similarity: 0.9},
	}}
	s := New(q, &mockEmbedder{}, log.NewNop())

	results, err := s.Search(context.Background(), "query text",
		WithTopK(3), WithSourceType(SourceTypeHandbook))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "a" {
		t.Errorf("results = %+v", results)
	}
	if q.lastLimit != 3 {
		t.Errorf("limit = %d, want 3", q.lastLimit)
	}
	if q.lastSource != SourceTypeHandbook {
		t.Errorf("source filter = %q", q.lastSource)
	}
}

func TestStoreSearchInvalidTopKFallsBack(t *testing.T) {
	t.Parallel()

	q := &mockQuerier{}
	s := New(q, &mockEmbedder{}, log.NewNop())

	if _, err := s.Search(context.Background(), "q", WithTopK(0)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if q.lastLimit != defaultTopK {
		t.Errorf("limit = %d, want default %d", q.lastLimit, defaultTopK)
	}
}

func TestStoreAddBatchStopsAtFailure(t *testing.T) {
	t.Parallel()

	s := New(&mockQuerier{}, &mockEmbedder{}, log.NewNop())
	docs := []Document{
		{ID: "a", Content: "one"},
		{Content: "missing id"},
		{ID: "c", Content: "three"},
	}

	n, err := s.AddBatch(context.Background(), docs)
	if err == nil {
		t.Fatal("expected error from invalid document")
	}
	if n != 1 {
		t.Errorf("added = %d, want 1 before failure", n)
	}
}

func TestRetrieverAddsQueryPrefixAndChunkID(t *testing.T) {
	t.Parallel()

	emb := &mockEmbedder{}
	q := &mockQuerier{results: []Result{
		{
			Document: Document{
				ID:       "handbook-42",
				Content:  "passage body",
				Metadata: map[string]string{"title": "Move semantics"},
			},
			Similarity: 0.8712,
		},
	}}
	store := New(q, emb, log.NewNop())
	r := NewRetriever(store)

	docs, err := r.Retrieve(context.Background(), "what are move semantics", 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(emb.inputs) != 1 || !strings.HasPrefix(emb.inputs[0], "query: ") {
		t.Errorf("embedded query = %q, want query: prefix", emb.inputs)
	}
	if q.lastLimit != 4 {
		t.Errorf("limit = %d, want 4", q.lastLimit)
	}

	if len(docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(docs))
	}
	md := docs[0].Metadata
	if md["title"] != "Move semantics" {
		t.Errorf("title metadata lost: %+v", md)
	}
	if md["chunk_id"] != "handbook-42" {
		t.Errorf("chunk_id = %q, want store id", md["chunk_id"])
	}
	if md["similarity"] != "0.8712" {
		t.Errorf("similarity = %q", md["similarity"])
	}
}

func TestRetrieverEmptyIndex(t *testing.T) {
	t.Parallel()

	store := New(&mockQuerier{}, &mockEmbedder{}, log.NewNop())
	r := NewRetriever(store)

	docs, err := r.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("docs = %+v, want none", docs)
	}
}
