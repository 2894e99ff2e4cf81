// Package storage defines the Store contract (C2) and the task/lock core contract (C7)
// implemented by internal/storage/sqlite, plus the sentinel errors both speak in.
package storage

import (
	"context"
	"errors"

	"github.com/untoldecay/semanticmemory/internal/types"
)

// Sentinel errors. Callers use errors.Is against these; wrapDBError attaches operation
// context with %w so the sentinel survives unwrapping.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidField        = errors.New("invalid field")
	ErrConflict            = errors.New("conflict")
	ErrTaskNotFound        = errors.New("task not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrDependencyNotMet    = errors.New("dependency not met")
	ErrLockConflict        = errors.New("lock conflict")
)

// SearchResult pairs a stored row with its similarity score from a vector search.
type SearchResult struct {
	Insight types.Insight
	Score   float64
}

// KBSearchResult mirrors SearchResult for knowledge-base chunks, rendered in the same
// "insight" shape for uniform downstream display (§4.2).
type KBSearchResult struct {
	Chunk types.KBChunk
	Score float64
}

// UpdateFields is the typed allowlist update(id, fields) accepts; a nil pointer means
// "not supplied", so a zero value is distinguished from an omitted field and a caller
// can, e.g., clear Source to "" without that being mistaken for "field omitted".
type UpdateFields struct {
	Text           *string
	NormalizedText *string
	Frame          *types.Frame
	Domains        *[]string
	Entities       *[]string
	Problems       *[]string
	Resolutions    *[]string
	Contexts       *[]string
	Confidence     *float64
	Source         *string
}

// Store is the C2 contract: CRUD for insights and KB chunks, plus the subject graph
// and vector search that ride alongside every insert.
type Store interface {
	Insert(ctx context.Context, insight *types.Insight, git *types.GitContext) (string, error)
	Get(ctx context.Context, id string) (*types.Insight, error)
	Update(ctx context.Context, id string, fields UpdateFields) (*types.Insight, error)
	Delete(ctx context.Context, id string) (bool, error)
	SearchByEmbedding(ctx context.Context, query []float32, k int, domain string) ([]SearchResult, error)
	ListAll(ctx context.Context, domain, frame string, limit int) ([]types.Insight, error)
	SearchBySubject(ctx context.Context, name string, kind string, limit int) ([]types.Insight, error)
	RelatedInsights(ctx context.Context, id string, limit int) ([]types.InsightRelation, error)

	AddSubjectRelation(ctx context.Context, fromName string, fromKind types.SubjectKind, toName string, toKind types.SubjectKind, rt types.RelationType) (bool, error)
	GetSubjectRelations(ctx context.Context, name string, kind string, relationType string, limit int) ([]types.SubjectRelation, error)

	CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) (string, error)
	GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]types.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) (bool, error)
	InsertKBChunk(ctx context.Context, chunk *types.KBChunk) (string, error)
	ListKBChunks(ctx context.Context, kbID string, limit int) ([]types.KBChunk, error)
	DeleteKBChunks(ctx context.Context, kbID string) (int, error)
	SearchKBByEmbedding(ctx context.Context, query []float32, kbID string, k int) ([]KBSearchResult, error)

	Close() error
}

// TaskStore is the C7 contract: the task/lock state machine, colocated in the same file
// but orthogonal to Store.
type TaskStore interface {
	CreateTask(ctx context.Context, title, owner string) (*types.Task, error)
	GetTask(ctx context.Context, taskID string) (*types.Task, error)
	ListTasks(ctx context.Context, status string, limit int) ([]types.Task, error)
	Transition(ctx context.Context, taskID string, from, to types.TaskStatus, actor, reason, evidence string, expectedVersion int) (*types.Task, error)

	AddDependencies(ctx context.Context, taskID string, dependsOn []string) error
	AssignLocks(ctx context.Context, taskID string, resources []string) ([]string, error)
	ReleaseLocks(ctx context.Context, taskID string) (int, error)

	AppendEvent(ctx context.Context, taskID, eventType, actor string, payload map[string]any) (*types.TaskEvent, error)
	ListEvents(ctx context.Context, taskID string, limit int) ([]types.TaskEvent, error)

	Close() error
}
