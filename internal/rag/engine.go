package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/prepbot/prepbot/internal/memory"
)

const (
	// DefaultTopK is how many documents are requested per query.
	DefaultTopK = 5

	// fallbackAnswer is returned when the model fails or produces an
	// empty response.
	fallbackAnswer = "I couldn't form an answer. Please try rephrasing your question."

	// disclaimerNotConnected is prepended when no knowledge base is
	// wired in at all.
	disclaimerNotConnected = "Note: the knowledge base is not connected yet. " +
		"The answer below is from general knowledge and may be inaccurate.\n\n"

	// disclaimerNoResults is prepended when retrieval is available but
	// found nothing for this query.
	disclaimerNoResults = "Note: no relevant information was found for this query. " +
		"The answer below is from general knowledge and may be inaccurate.\n\n"

	// sourcesHeader introduces the citation block.
	sourcesHeader = "Sources:"
)

// Config contains all required parameters for the Engine.
type Config struct {
	Generator Generator
	Memory    *memory.Store
	Logger    *slog.Logger

	// Retriever is the knowledge backend. nil means no knowledge base is
	// connected; the engine then runs with an EmptyRetriever and tells
	// the user so in its disclaimer.
	Retriever Retriever

	// RetryConfig tunes model-call retries. Zero value uses defaults.
	RetryConfig RetryConfig

	// RateLimiter optionally throttles model calls, applied before every
	// attempt. nil disables proactive limiting.
	RateLimiter *rate.Limiter

	// ContextMaxChars bounds the formatted context. Zero uses
	// DefaultContextChars.
	ContextMaxChars int

	// TopK is the retrieval depth. Zero uses DefaultTopK.
	TopK int
}

func (cfg Config) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Memory == nil {
		return errors.New("memory store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Engine runs the answer pipeline. It is the error boundary for all
// collaborators: retrieval and generation failures degrade to fallbacks
// and are logged, never surfaced to the caller as errors.
//
// All configuration is captured immutably at construction, so one
// Engine is safe for concurrent use by many in-flight requests.
type Engine struct {
	generator Generator
	retriever Retriever
	memory    *memory.Store
	logger    *slog.Logger

	retryConfig     RetryConfig
	rateLimiter     *rate.Limiter
	contextMaxChars int
	topK            int

	// knowledgeConnected distinguishes "index not wired" from "index
	// returned nothing" for disclaimer wording. Decided at construction,
	// never by inspecting the backend's concrete type.
	knowledgeConnected bool
}

// New creates an Engine from cfg. A nil cfg.Retriever degrades to an
// EmptyRetriever rather than failing: the assistant must keep answering
// from general knowledge when the index is missing.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	connected := cfg.Retriever != nil
	retriever := cfg.Retriever
	if retriever == nil {
		retriever = EmptyRetriever{}
	}

	contextMax := cfg.ContextMaxChars
	if contextMax <= 0 {
		contextMax = DefaultContextChars
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &Engine{
		generator:          cfg.Generator,
		retriever:          retriever,
		memory:             cfg.Memory,
		logger:             cfg.Logger,
		retryConfig:        cfg.RetryConfig.withDefaults(),
		rateLimiter:        cfg.RateLimiter,
		contextMaxChars:    contextMax,
		topK:               topK,
		knowledgeConnected: connected,
	}, nil
}

// Answer runs the full pipeline for one user message and returns the
// final answer text, before rendering and chunking (the transport does
// that). The only error it returns is context cancellation; every
// collaborator failure degrades to a textual fallback instead.
//
// History is updated with the original user text and the final answer
// as one atomic exchange, on fallback paths too — but never after a
// cancellation, so an abandoned request leaves no partial turn behind.
func (e *Engine) Answer(ctx context.Context, conversationID, userID int64, text string) (string, error) {
	history := e.memory.History(conversationID)
	prefs := e.memory.Preferences(userID)

	query := e.rewriteQuery(ctx, conversationID, history, text)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	docs := e.retrieve(ctx, conversationID, query)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	contextText := FormatContext(docs, e.contextMaxChars)
	disclaimer := ""
	if contextText == "" {
		if e.knowledgeConnected {
			disclaimer = disclaimerNoResults
		} else {
			disclaimer = disclaimerNotConnected
		}
		contextText = placeholderContext
	}

	answer := e.generateAnswer(ctx, conversationID, query, contextText, prefs.Style)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	answer = e.postprocess(answer, disclaimer, docs)

	e.memory.AppendExchange(conversationID, text, answer)
	return answer, nil
}

// rewriteQuery turns the user's message into a standalone query using
// the conversation history. Failures fall back to the raw text.
func (e *Engine) rewriteQuery(ctx context.Context, conversationID int64, history []memory.Turn, text string) string {
	if len(history) == 0 {
		// Nothing to resolve against; the message is the query.
		return strings.TrimSpace(text)
	}

	rewritten, err := withRetry(ctx, e.logger, e.retryConfig, retryableError,
		func(ctx context.Context) (string, error) {
			return e.generate(ctx, GenerateRequest{
				System:  rewriteSystemPrompt,
				History: history,
				Prompt:  text,
			})
		})
	if err != nil {
		e.logger.Warn("query rewrite failed, using raw text",
			"conversation", conversationID,
			"phase", "rewrite",
			"error", err,
		)
		return strings.TrimSpace(text)
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return strings.TrimSpace(text)
	}
	return rewritten
}

// retrieve fetches documents for the query. Failures degrade to zero
// documents.
func (e *Engine) retrieve(ctx context.Context, conversationID int64, query string) []Document {
	docs, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		e.logger.Warn("retrieval failed, continuing without context",
			"conversation", conversationID,
			"phase", "retrieve",
			"error", err,
		)
		return nil
	}
	return docs
}

// generateAnswer invokes the model for the final answer. Failures and
// blank responses degrade to a fixed fallback message.
func (e *Engine) generateAnswer(ctx context.Context, conversationID int64, question, contextText string, style memory.Style) string {
	answer, err := withRetry(ctx, e.logger, e.retryConfig, retryableError,
		func(ctx context.Context) (string, error) {
			return e.generate(ctx, GenerateRequest{
				System: answerSystemPrompt,
				Prompt: answerPrompt(question, contextText, style),
			})
		})
	if err != nil {
		e.logger.Warn("answer generation failed, using fallback",
			"conversation", conversationID,
			"phase", "answer",
			"error", err,
		)
		return fallbackAnswer
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return fallbackAnswer
	}
	return answer
}

// postprocess prepends the disclaimer and decides whether citations are
// appended: only when documents were retrieved, no disclaimer was set
// and the answer does not genuinely admit "no information found".
func (e *Engine) postprocess(answer, disclaimer string, docs []Document) string {
	answer = strings.TrimSpace(disclaimer + answer)

	if len(docs) == 0 || disclaimer != "" || ContainsNoInfoAdmission(answer) {
		return answer
	}
	sources := FormatSources(docs)
	if sources == "" {
		return answer
	}
	return answer + "\n\n" + sourcesHeader + "\n" + sources
}

// generate performs one model call, honoring the rate limiter before
// every attempt.
func (e *Engine) generate(ctx context.Context, req GenerateRequest) (string, error) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return e.generator.Generate(ctx, req)
}
