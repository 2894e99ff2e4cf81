package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/untoldecay/semanticmemory/internal/config"
	"github.com/untoldecay/semanticmemory/internal/embed"
	"github.com/untoldecay/semanticmemory/internal/normalize"
	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// Page is an already-fetched (url, markdown) pair; the crawler that produces these is
// out of scope (§1).
type Page struct {
	URL      string
	Markdown string
}

// ProgressFunc is invoked exactly once per page during IngestPages.
type ProgressFunc func(current, total int, url string)

// Ingestor orchestrates clean → chunk → normalize → filter → batch-embed → store for
// knowledge-base pages.
type Ingestor struct {
	store      storage.Store
	normalizer *normalize.Normalizer
	embedder   *embed.Embedder
	maxChars   int
}

func New(store storage.Store, normalizer *normalize.Normalizer, embedder *embed.Embedder) *Ingestor {
	return &Ingestor{store: store, normalizer: normalizer, embedder: embedder, maxChars: defaultMaxChars}
}

// IngestPages ingests each page into kbID in order, reporting progress once per page,
// and returns the total number of chunks stored.
func (ig *Ingestor) IngestPages(ctx context.Context, kbID string, pages []Page, onProgress ProgressFunc) (int, error) {
	total := 0
	for i, page := range pages {
		if onProgress != nil {
			onProgress(i+1, len(pages), page.URL)
		}
		n, err := ig.IngestPage(ctx, kbID, page)
		if err != nil {
			return total, fmt.Errorf("failed to ingest page %s: %w", page.URL, err)
		}
		total += n
	}
	return total, nil
}

// IngestPage cleans and chunks one page's markdown, normalizes each chunk sequentially
// (a single page's chunks share ordering requirements that concurrent normalization
// would violate — independent pages may still run concurrently at the caller's
// discretion), filters by confidence, batch-embeds exactly once, and stores the result
// as KB chunks. A page with zero kept insights returns 0 without touching the DB (§4.5).
func (ig *Ingestor) IngestPage(ctx context.Context, kbID string, page Page) (int, error) {
	cleaned := CleanMarkdown(page.Markdown)
	textChunks := SplitMarkdown(cleaned, ig.maxChars)

	var allInsights []types.Insight
	for _, chunk := range textChunks {
		insights, err := ig.normalizer.Normalize(ctx, chunk, page.URL, nil)
		if err != nil {
			log.Printf("ingest: failed to normalize chunk from %s: %v", page.URL, err)
			continue
		}
		allInsights = append(allInsights, insights...)
	}
	if len(allInsights) == 0 {
		return 0, nil
	}

	threshold := config.MinConfidenceThreshold()
	filtered := allInsights[:0]
	for _, ins := range allInsights {
		if ins.Confidence >= threshold {
			filtered = append(filtered, ins)
		}
	}
	if len(filtered) == 0 {
		return 0, nil
	}

	texts := make([]string, len(filtered))
	for i, ins := range filtered {
		texts[i] = ins.NormalizedText
	}
	embeddings, err := ig.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("batch embed failed: %w", err)
	}

	stored := 0
	for i, ins := range filtered {
		chunk := &types.KBChunk{
			KBID:           kbID,
			SourceURL:      page.URL,
			Text:           ins.Text,
			NormalizedText: ins.NormalizedText,
			Frame:          ins.Frame,
			Domains:        ins.Domains,
			Entities:       ins.Entities,
			Problems:       ins.Problems,
			Resolutions:    ins.Resolutions,
			Contexts:       ins.Contexts,
			Confidence:     ins.Confidence,
			Embedding:      embeddings[i],
		}
		if _, err := ig.store.InsertKBChunk(ctx, chunk); err != nil {
			return stored, fmt.Errorf("failed to store kb chunk: %w", err)
		}
		stored++
	}
	return stored, nil
}
