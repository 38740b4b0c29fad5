package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/prepbot/prepbot/internal/memory"
)

// GenkitGenerator is the production Generator, backed by a Genkit
// instance and a provider-qualified model name (e.g.
// "googleai/gemini-2.5-flash", "ollama/llama3.3").
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
}

// NewGenkitGenerator creates a Generator using the given Genkit
// instance and model.
func NewGenkitGenerator(g *genkit.Genkit, modelName string) (*GenkitGenerator, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	return &GenkitGenerator{g: g, modelName: modelName}, nil
}

// Generate performs one non-streaming model call.
func (gg *GenkitGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, turn := range req.History {
		switch turn.Role {
		case memory.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Text)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Text)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Prompt)))

	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.modelName),
		ai.WithSystem(req.System),
		ai.WithMessages(messages...),
	)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Text(), nil
}
