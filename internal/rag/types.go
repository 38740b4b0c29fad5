// Package rag implements the answer-generation pipeline: conversation
// aware query rewriting, retrieval, context budgeting, resilient model
// invocation, citation assembly and memory updates.
//
// The package depends only on capabilities: a Retriever that returns
// ranked documents and a Generator that produces text. Backends live
// elsewhere (internal/knowledge, genkit providers) and are injected at
// construction time.
package rag

import (
	"context"

	"github.com/prepbot/prepbot/internal/memory"
)

// Document is one retrieved passage. Content is the passage text,
// Metadata carries at least a display title and optionally a source
// link and chunk id.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Well-known metadata keys, matching the ingest pipeline's output.
const (
	MetaTitle      = "title"
	MetaSource     = "source"
	MetaSourceLink = "source_link"
	MetaChunkID    = "chunk_id"
)

// Retriever returns the k best-matching documents for a query, ranked
// best first. It may return fewer than k. An empty result is the
// no-results signal, never an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// EmptyRetriever is a Retriever with nothing behind it. The engine runs
// with it when no knowledge base is connected.
type EmptyRetriever struct{}

func (EmptyRetriever) Retrieve(context.Context, string, int) ([]Document, error) {
	return nil, nil
}

// GenerateRequest is one model invocation.
type GenerateRequest struct {
	// System is the system instruction for this call.
	System string
	// History is prior conversation turns, oldest first. May be empty.
	History []memory.Turn
	// Prompt is the final user message.
	Prompt string
}

// Generator produces text from a prompt. Implementations may fail
// transiently (rate limiting) or permanently; the engine decides what
// to do about either.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
