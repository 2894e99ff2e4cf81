// Package embed implements the Embedder (C4): a dense-vector provider with single and
// batch embedding operations, always returning unit-normalized float32 vectors
// regardless of what the underlying provider returns.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/untoldecay/semanticmemory/internal/audit"
	"github.com/untoldecay/semanticmemory/internal/config"
)

// Provider is the minimal contract a concrete embedding backend implements.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Embedder wraps a Provider and guarantees unit-normalized output, so downstream code
// can always assume ‖v‖ = 1 (§4.4) even if the provider already normalizes internally.
type Embedder struct {
	provider Provider
	audit    *audit.Logger
}

func New(provider Provider) *Embedder {
	return &Embedder{provider: provider}
}

// SetAuditLogger attaches a durable record of every batch-embed call. A nil logger
// (the default) disables auditing.
func (e *Embedder) SetAuditLogger(l *audit.Logger) {
	e.audit = l
}

func (e *Embedder) Dimensions() int { return e.provider.Dimensions() }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	return normalize(v), nil
}

// EmbedBatch returns one unit-normalized row per input; the call succeeds or fails as a
// whole (§4.4) — a partial provider response is treated as a hard failure.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	rows, err := e.provider.EmbedBatch(ctx, texts)
	if e.audit != nil {
		entry := &audit.Entry{Kind: "embed_batch", Response: fmt.Sprintf("%d rows", len(rows))}
		if err != nil {
			entry.Error = err.Error()
		}
		_, _ = e.audit.Append(entry)
	}
	if err != nil {
		return nil, fmt.Errorf("embed batch failed: %w", err)
	}
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("embed batch failed: expected %d rows, got %d", len(texts), len(rows))
	}
	out := make([][]float32, len(rows))
	for i, row := range rows {
		out[i] = normalize(row)
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// NewFromEnv selects a Provider per EMBEDDING_PROVIDER (§6): "openai" (default) or
// "bedrock". No Bedrock client ships in this build (see DESIGN.md); selecting it returns
// a clear configuration error rather than a silent fallback.
func NewFromEnv() (*Embedder, error) {
	switch config.EmbeddingProvider() {
	case "", "openai":
		p, err := NewOpenAIProvider(config.OpenAIAPIKey(), "")
		if err != nil {
			return nil, err
		}
		return New(p), nil
	case "bedrock":
		return nil, fmt.Errorf("EMBEDDING_PROVIDER=bedrock is not wired in this build: no Bedrock runtime client is available")
	default:
		return nil, fmt.Errorf("unrecognized EMBEDDING_PROVIDER %q", config.EmbeddingProvider())
	}
}
