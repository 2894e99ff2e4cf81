package embed

import (
	"context"
	"math"
	"testing"
)

type fakeProvider struct {
	dims int
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{3, 4}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{3, 4}
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return f.dims }

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func TestEmbedNormalizesOutput(t *testing.T) {
	e := New(&fakeProvider{dims: 2})
	v, err := e.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if n := vectorNorm(v); math.Abs(n-1) > 1e-6 {
		t.Errorf("‖v‖ = %v, want 1", n)
	}
}

func TestEmbedBatchNormalizesEachRow(t *testing.T) {
	e := New(&fakeProvider{dims: 2})
	rows, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if n := vectorNorm(row); math.Abs(n-1) > 1e-6 {
			t.Errorf("row %d: ‖v‖ = %v, want 1", i, n)
		}
	}
}

func TestEmbedBatchEmptyInputReturnsNil(t *testing.T) {
	e := New(&fakeProvider{dims: 2})
	rows, err := e.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if rows != nil {
		t.Errorf("expected nil rows for empty input, got %v", rows)
	}
}
