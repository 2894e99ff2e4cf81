package main

import (
	"context"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/audit"
	"github.com/untoldecay/semanticmemory/internal/config"
	"github.com/untoldecay/semanticmemory/internal/embed"
	"github.com/untoldecay/semanticmemory/internal/ingest"
	"github.com/untoldecay/semanticmemory/internal/insight"
	"github.com/untoldecay/semanticmemory/internal/normalize"
	"github.com/untoldecay/semanticmemory/internal/storage/sqlite"
)

// openStorage opens the configured database file, running any pending migrations.
func openStorage(ctx context.Context) (*sqlite.SQLiteStorage, error) {
	store, err := sqlite.New(ctx, config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", config.DBPath(), err)
	}
	return store, nil
}

// newService wires C2-C6 together the way the out-of-scope RPC server would: a store, a
// Normalizer and Embedder selected from the environment, and an audit logger shared by
// both so every LLM/embedding call this invocation makes lands in audit.jsonl.
func newService(ctx context.Context) (*sqlite.SQLiteStorage, *insight.Service, error) {
	store, err := openStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := audit.NewLogger(audit.PathFor(config.DBPath()))

	provider, err := normalize.NewProviderFromEnv()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	normalizer := normalize.New(provider)
	normalizer.SetAuditLogger(logger)

	embedder, err := embed.NewFromEnv()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	embedder.SetAuditLogger(logger)

	return store, insight.New(store, normalizer, embedder), nil
}

// newIngestor wires the same C3/C4 backends into an Ingestor (C5), for kb ingest-file.
func newIngestor(ctx context.Context) (*sqlite.SQLiteStorage, *ingest.Ingestor, error) {
	store, err := openStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := audit.NewLogger(audit.PathFor(config.DBPath()))

	provider, err := normalize.NewProviderFromEnv()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	normalizer := normalize.New(provider)
	normalizer.SetAuditLogger(logger)

	embedder, err := embed.NewFromEnv()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	embedder.SetAuditLogger(logger)

	return store, ingest.New(store, normalizer, embedder), nil
}
