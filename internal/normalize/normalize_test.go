package normalize

import (
	"context"
	"testing"

	"github.com/untoldecay/semanticmemory/internal/types"
)

type fakeProvider struct {
	atoms       []string
	classifyFor map[string]Classification
}

func (f *fakeProvider) Decompose(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	return f.atoms, nil
}

func (f *fakeProvider) Classify(ctx context.Context, atom string) (Classification, error) {
	return f.classifyFor[atom], nil
}

func TestNormalizeEmptyTextReturnsNoInsights(t *testing.T) {
	n := New(&fakeProvider{})
	insights, err := n.Normalize(context.Background(), "", "debug", []string{"node"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("expected no insights, got %d", len(insights))
	}
}

func TestNormalizePreservesDecompositionOrder(t *testing.T) {
	atoms := []string{"first atom text here", "second atom text here"}
	fp := &fakeProvider{
		atoms: atoms,
		classifyFor: map[string]Classification{
			"first atom text here": {
				Frame: "constraint", Normalized: "adding null checks requires JWT validation first",
				Problems: []string{"null pointer"}, Resolutions: []string{"null checks"},
			},
			"second atom text here": {
				Frame: "causal", Normalized: "missing auth causes production failures under load",
				Problems: []string{"auth failures"}, Contexts: []string{"production"},
			},
		},
	}

	n := New(fp)
	insights, err := n.Normalize(context.Background(), "text", "debug", []string{"node", "auth"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[0].Frame != types.FrameConstraint {
		t.Errorf("insights[0].Frame = %q, want constraint", insights[0].Frame)
	}
	if insights[1].Frame != types.FrameCausal {
		t.Errorf("insights[1].Frame = %q, want causal", insights[1].Frame)
	}
	for _, ins := range insights {
		if ins.Source != "debug" {
			t.Errorf("Source = %q, want debug", ins.Source)
		}
		if len(ins.Domains) != 2 {
			t.Errorf("Domains = %v, want [node auth]", ins.Domains)
		}
	}
}

func TestScoreConfidenceShortTextIsPenalized(t *testing.T) {
	score := scoreConfidence("short text", types.FrameCausal, []string{"e"}, nil, nil)
	if score >= 0.5 {
		t.Errorf("expected a low score for short text, got %v", score)
	}
}

func TestScoreConfidenceGenericPhraseIsPenalized(t *testing.T) {
	generic := scoreConfidence("A widget is a type of component with many long descriptive words here", types.FrameTaxonomy, nil, nil, nil)
	specific := scoreConfidence("A widget renders the dashboard panel with many long descriptive words here", types.FrameCausal, []string{"e1"}, []string{"p1"}, nil)
	if generic >= specific {
		t.Errorf("expected generic-phrase score (%v) to be lower than specific score (%v)", generic, specific)
	}
}
