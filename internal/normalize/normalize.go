package normalize

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/untoldecay/semanticmemory/internal/audit"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// Normalizer decomposes raw text into atoms and classifies each into a frame-rewritten
// Insight, scored but not yet filtered — filtering against the confidence threshold
// happens at the ingestion boundary (§4.3), not here.
type Normalizer struct {
	provider Provider
	audit    *audit.Logger
}

func New(provider Provider) *Normalizer {
	return &Normalizer{provider: provider}
}

// SetAuditLogger attaches a durable record of every decompose/classify call. A nil
// logger (the default) disables auditing; Logger.Append is itself nil-safe.
func (n *Normalizer) SetAuditLogger(l *audit.Logger) {
	n.audit = l
}

// Normalize decomposes text into atoms, classifies them concurrently (network calls
// overlap; classification errors on one atom do not block the others), and returns one
// Insight per atom in decomposition order. domains and source are caller-supplied and
// never LLM-derived.
func (n *Normalizer) Normalize(ctx context.Context, text, source string, domains []string) ([]types.Insight, error) {
	atoms, err := n.provider.Decompose(ctx, text)
	n.logCall("decompose", text, fmt.Sprintf("%d atoms", len(atoms)), err)
	if err != nil {
		return nil, fmt.Errorf("decompose failed: %w", err)
	}
	if len(atoms) == 0 {
		return nil, nil
	}

	p := pool.NewWithResults[classifyOutcome]().WithContext(ctx)
	for _, atom := range atoms {
		atom := atom
		p.Go(func(ctx context.Context) (classifyOutcome, error) {
			c, err := n.provider.Classify(ctx, atom)
			n.logCall("classify", atom, c.Frame, err)
			return classifyOutcome{atom: atom, classification: c, err: err}, nil
		})
	}
	outcomes, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("classify failed: %w", err)
	}

	insights := make([]types.Insight, 0, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			return nil, fmt.Errorf("classify failed for atom %q: %w", o.atom, o.err)
		}
		frame, err := types.ParseFrame(o.classification.Frame)
		if err != nil {
			return nil, fmt.Errorf("classification produced %w for atom %q", err, o.atom)
		}

		insights = append(insights, types.Insight{
			Text:           o.atom,
			NormalizedText: o.classification.Normalized,
			Frame:          frame,
			Domains:        domains,
			Entities:       o.classification.Entities,
			Problems:       o.classification.Problems,
			Resolutions:    o.classification.Resolutions,
			Contexts:       o.classification.Contexts,
			Confidence: scoreConfidence(
				o.classification.Normalized, frame,
				o.classification.Entities, o.classification.Problems, o.classification.Resolutions,
			),
			Source: source,
		})
	}
	return insights, nil
}

func (n *Normalizer) logCall(kind, prompt, response string, callErr error) {
	if n.audit == nil {
		return
	}
	e := &audit.Entry{Kind: kind, Prompt: prompt, Response: response}
	if callErr != nil {
		e.Error = callErr.Error()
	}
	_, _ = n.audit.Append(e)
}

type classifyOutcome struct {
	atom           string
	classification Classification
	err            error
}
