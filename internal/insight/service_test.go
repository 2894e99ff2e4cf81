package insight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/semanticmemory/internal/embed"
	"github.com/untoldecay/semanticmemory/internal/normalize"
	"github.com/untoldecay/semanticmemory/internal/storage/sqlite"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

type fakeLLMProvider struct{}

func (fakeLLMProvider) Decompose(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

func (fakeLLMProvider) Classify(ctx context.Context, atom string) (normalize.Classification, error) {
	return normalize.Classification{
		Frame:       "causal",
		Normalized:  "retries without backoff causes cascading outages under load",
		Entities:    []string{"retry-client"},
		Problems:    []string{"cascading-failure"},
		Resolutions: []string{"exponential-backoff"},
	}, nil
}

type fakeEmbedProvider struct{}

func (fakeEmbedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fakeEmbedProvider) Dimensions() int { return 2 }

func setupService(t *testing.T) (*Service, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "semanticmemory-insight-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := sqlite.New(context.Background(), filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	svc := New(store, normalize.New(fakeLLMProvider{}), embed.New(fakeEmbedProvider{}))
	return svc, func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
}

func TestStoreInsightThenSearch(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	ids, err := svc.StoreInsight(ctx, "retries amplify outages", "debug", []string{"reliability"}, nil)
	if err != nil {
		t.Fatalf("StoreInsight failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 stored insight, got %d", len(ids))
	}

	results, err := svc.SearchInsights(ctx, "what causes outages", 5, "")
	if err != nil {
		t.Fatalf("SearchInsights failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(results))
	}
	if results[0].Insight.ID != ids[0] {
		t.Errorf("expected to find the stored insight, got id %q", results[0].Insight.ID)
	}
}

func TestStoreInsightEmptyTextStoresNothing(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	ids, err := svc.StoreInsight(context.Background(), "", "debug", nil, nil)
	if err != nil {
		t.Fatalf("StoreInsight failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no insights stored for empty text, got %d", len(ids))
	}
}

func TestForgetRemovesInsight(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	ids, err := svc.StoreInsight(ctx, "retries amplify outages", "debug", nil, nil)
	if err != nil {
		t.Fatalf("StoreInsight failed: %v", err)
	}

	ok, err := svc.Forget(ctx, ids[0])
	if err != nil || !ok {
		t.Fatalf("Forget failed: ok=%v err=%v", ok, err)
	}

	insights, err := svc.ListInsights(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("ListInsights failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("expected no insights after Forget, got %d", len(insights))
	}
}
