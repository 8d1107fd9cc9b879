package model

import (
	"context"

	"github.com/tellerline/tellerline/internal/model/contract"
)

// Router resolves a model name to a provider and falls back when the primary
// is unavailable.
type Router interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	RouteEmbedding(ctx context.Context, model string, text string) ([]float32, error)
	ListModels() []string
}

// Provider is one language-generation backend.
type Provider interface {
	Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}
