// Package insight implements the Insight service (C6): a thin composer over the
// Normalizer, Embedder and Store that exposes the named external operations consumed by
// the out-of-scope JSON-RPC-style server (§6).
package insight

import (
	"context"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/embed"
	"github.com/untoldecay/semanticmemory/internal/normalize"
	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// Service composes C2-C5 into the operations named in §6.
type Service struct {
	store      storage.Store
	normalizer *normalize.Normalizer
	embedder   *embed.Embedder
}

func New(store storage.Store, normalizer *normalize.Normalizer, embedder *embed.Embedder) *Service {
	return &Service{store: store, normalizer: normalizer, embedder: embedder}
}

// StoreInsight runs text through normalize → embed_batch → insert (once per insight),
// forwarding git context to each insert. Empty text yields zero stored insights.
func (s *Service) StoreInsight(ctx context.Context, text, source string, domains []string, git *types.GitContext) ([]string, error) {
	insights, err := s.normalizer.Normalize(ctx, text, source, domains)
	if err != nil {
		return nil, fmt.Errorf("normalize failed: %w", err)
	}
	if len(insights) == 0 {
		return nil, nil
	}

	texts := make([]string, len(insights))
	for i, ins := range insights {
		texts[i] = ins.NormalizedText
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch failed: %w", err)
	}

	ids := make([]string, len(insights))
	for i, ins := range insights {
		ins.Embedding = embeddings[i]
		id, err := s.store.Insert(ctx, &ins, git)
		if err != nil {
			return ids[:i], fmt.Errorf("insert failed: %w", err)
		}
		ids[i] = id
	}
	return ids, nil
}

// SearchInsights embeds the query and ranks stored insights by cosine similarity.
func (s *Service) SearchInsights(ctx context.Context, query string, k int, domain string) ([]storage.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return s.store.SearchByEmbedding(ctx, vec, k, domain)
}

func (s *Service) UpdateInsight(ctx context.Context, id string, fields storage.UpdateFields) (*types.Insight, error) {
	return s.store.Update(ctx, id, fields)
}

// Forget deletes a stored insight by id.
func (s *Service) Forget(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

func (s *Service) ListInsights(ctx context.Context, domain, frame string, limit int) ([]types.Insight, error) {
	return s.store.ListAll(ctx, domain, frame, limit)
}

func (s *Service) SearchBySubject(ctx context.Context, name, kind string, limit int) ([]types.Insight, error) {
	return s.store.SearchBySubject(ctx, name, kind, limit)
}

func (s *Service) RelatedInsights(ctx context.Context, id string, limit int) ([]types.InsightRelation, error) {
	return s.store.RelatedInsights(ctx, id, limit)
}

func (s *Service) AddSubjectRelation(ctx context.Context, fromName string, fromKind types.SubjectKind, toName string, toKind types.SubjectKind, rt types.RelationType) (bool, error) {
	return s.store.AddSubjectRelation(ctx, fromName, fromKind, toName, toKind, rt)
}

func (s *Service) GetSubjectRelations(ctx context.Context, name, kind, relationType string, limit int) ([]types.SubjectRelation, error) {
	return s.store.GetSubjectRelations(ctx, name, kind, relationType, limit)
}

func (s *Service) AddKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) (string, error) {
	return s.store.CreateKnowledgeBase(ctx, kb)
}

// SearchKnowledgeBase embeds the query and ranks a single KB's chunks by cosine similarity.
func (s *Service) SearchKnowledgeBase(ctx context.Context, kbID, query string, k int) ([]storage.KBSearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return s.store.SearchKBByEmbedding(ctx, vec, kbID, k)
}

func (s *Service) ListKnowledgeBases(ctx context.Context) ([]types.KnowledgeBase, error) {
	return s.store.ListKnowledgeBases(ctx)
}
