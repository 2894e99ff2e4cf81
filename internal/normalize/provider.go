// Package normalize implements the Normalizer (C3): an LLM client orchestrator that
// decomposes raw text into atomic statements and classifies each into one of the six
// canonical frames, followed by a deterministic confidence-scoring pass.
package normalize

import (
	"context"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/config"
)

// Classification is the result of classifying a single atom.
type Classification struct {
	Frame       string
	Normalized  string
	Entities    []string
	Problems    []string
	Resolutions []string
	Contexts    []string
}

// Provider is the LLM backend contract; Anthropic and Ollama both implement it.
type Provider interface {
	Decompose(ctx context.Context, text string) ([]string, error)
	Classify(ctx context.Context, atom string) (Classification, error)
}

// NewProviderFromEnv selects a Provider per LLM_PROVIDER (§6): "anthropic" (default),
// "ollama" (a client for a local Ollama daemon), or "bedrock". No
// Bedrock client ships in this build (see DESIGN.md); selecting it returns a clear
// configuration error rather than a silent fallback.
func NewProviderFromEnv() (Provider, error) {
	switch config.LLMProvider() {
	case "", "anthropic":
		return NewAnthropicProvider(config.AnthropicAPIKey())
	case "ollama":
		return NewOllamaProvider("")
	case "bedrock":
		return nil, fmt.Errorf("LLM_PROVIDER=bedrock is not wired in this build: no Bedrock runtime client is available")
	default:
		return nil, fmt.Errorf("unrecognized LLM_PROVIDER %q", config.LLMProvider())
	}
}
