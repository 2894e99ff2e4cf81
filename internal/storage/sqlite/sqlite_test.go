package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "semanticmemory-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func sampleInsight() *types.Insight {
	return &types.Insight{
		Text:           "Retries without backoff amplify outages under load.",
		NormalizedText: "retries without backoff amplify outages under load",
		Frame:          types.FrameCausal,
		Domains:        []string{"reliability"},
		Entities:       []string{"retry-client"},
		Problems:       []string{"cascading-failure"},
		Resolutions:    []string{"exponential-backoff"},
		Contexts:       []string{"high-load incident"},
		Confidence:     0.9,
		Source:         "incident-report",
		Embedding:      []float32{0.6, 0.8},
	}
}

func TestInsertAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insight := sampleInsight()

	id, err := store.Insert(ctx, insight, nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != insight.Text {
		t.Errorf("Text = %q, want %q", got.Text, insight.Text)
	}
	if got.Frame != types.FrameCausal {
		t.Errorf("Frame = %q, want causal", got.Frame)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 0.6 {
		t.Errorf("Embedding round-trip mismatch: %v", got.Embedding)
	}
}

func TestInsertRejectsInvalidFrame(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	insight := sampleInsight()
	insight.Frame = types.Frame("not-a-real-frame")

	if _, err := store.Insert(context.Background(), insight, nil); err == nil {
		t.Fatal("expected an error for an invalid frame")
	}
}

func TestInsertBuildsAutoRelations(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := store.Insert(ctx, sampleInsight(), nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rels, err := store.GetSubjectRelations(ctx, "cascading-failure", string(types.SubjectProblem), string(types.RelSolvedBy), 0)
	if err != nil {
		t.Fatalf("GetSubjectRelations failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 solved_by relation, got %d", len(rels))
	}
}

func TestUpdateLeavesUnsuppliedFieldsUnchanged(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id, err := store.Insert(ctx, sampleInsight(), nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	newConfidence := 0.5
	updated, err := store.Update(ctx, id, storage.UpdateFields{Confidence: &newConfidence})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", updated.Confidence)
	}
	if len(updated.Domains) != 1 || updated.Domains[0] != "reliability" {
		t.Errorf("Domains should be unchanged, got %v", updated.Domains)
	}
}

func TestDeleteCascadesSubjectMembership(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id, err := store.Insert(ctx, sampleInsight(), nil)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ok, err := store.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete failed: ok=%v err=%v", ok, err)
	}

	if _, err := store.Get(ctx, id); err == nil {
		t.Fatal("expected Get to fail after delete")
	}

	results, err := store.SearchBySubject(ctx, "cascading-failure", string(types.SubjectProblem), 0)
	if err != nil {
		t.Fatalf("SearchBySubject failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no insights after delete, got %d", len(results))
	}
}

func TestSearchByEmbeddingRanksByCosineSimilarity(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	near := sampleInsight()
	near.Embedding = []float32{1, 0}

	far := sampleInsight()
	far.Text = "unrelated insight"
	far.Embedding = []float32{0, 1}

	if _, err := store.Insert(ctx, far, nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.Insert(ctx, near, nil); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := store.SearchByEmbedding(ctx, []float32{1, 0}, 1, "")
	if err != nil {
		t.Fatalf("SearchByEmbedding failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Insight.Text != near.Text {
		t.Errorf("expected the closest-matching insight first, got %q", results[0].Insight.Text)
	}
}

func TestTaskLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	task, err := store.CreateTask(ctx, "ship the thing", "alice")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Status != types.TaskTodo {
		t.Errorf("Status = %q, want todo", task.Status)
	}

	updated, err := store.Transition(ctx, task.TaskID, types.TaskTodo, types.TaskInProgress, "alice", "starting", "", task.Version)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.Status != types.TaskInProgress {
		t.Errorf("Status = %q, want in_progress", updated.Status)
	}
	if updated.Version != task.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, task.Version+1)
	}

	events, err := store.ListEvents(ctx, task.TaskID, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "state_transition" {
		t.Fatalf("expected a single state_transition event, got %+v", events)
	}
}

func TestTransitionDetectsConcurrencyConflict(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	task, err := store.CreateTask(ctx, "ship the thing", "alice")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if _, err := store.Transition(ctx, task.TaskID, types.TaskTodo, types.TaskInProgress, "alice", "", "", task.Version); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	if _, err := store.Transition(ctx, task.TaskID, types.TaskTodo, types.TaskInProgress, "bob", "", "", task.Version); err == nil {
		t.Fatal("expected a concurrency conflict on the stale version")
	}
}

func TestTransitionBlocksOnUnmetDependency(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	blocker, err := store.CreateTask(ctx, "blocker", "alice")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	dependent, err := store.CreateTask(ctx, "dependent", "alice")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := store.AddDependencies(ctx, dependent.TaskID, []string{blocker.TaskID}); err != nil {
		t.Fatalf("AddDependencies failed: %v", err)
	}

	if _, err := store.Transition(ctx, dependent.TaskID, types.TaskTodo, types.TaskInProgress, "alice", "", "", dependent.Version); err == nil {
		t.Fatal("expected dependency-not-met error")
	}
}

func TestAssignLocksRejectsPrefixOverlap(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	taskA, _ := store.CreateTask(ctx, "task a", "alice")
	taskB, _ := store.CreateTask(ctx, "task b", "bob")

	if _, err := store.AssignLocks(ctx, taskA.TaskID, []string{"repo/pkg"}); err != nil {
		t.Fatalf("AssignLocks failed: %v", err)
	}

	if _, err := store.AssignLocks(ctx, taskB.TaskID, []string{"repo/pkg/sub"}); err == nil {
		t.Fatal("expected a lock conflict for an overlapping prefix")
	}

	n, err := store.ReleaseLocks(ctx, taskA.TaskID)
	if err != nil {
		t.Fatalf("ReleaseLocks failed: %v", err)
	}
	if n != 1 {
		t.Errorf("released %d locks, want 1", n)
	}

	if _, err := store.AssignLocks(ctx, taskB.TaskID, []string{"repo/pkg/sub"}); err != nil {
		t.Fatalf("expected AssignLocks to succeed after release: %v", err)
	}
}

// TestAssignLocksNormalizesTrailingSlash covers spec §8 scenario 6: a trailing slash on
// the stored resource must not defeat the prefix-overlap trigger.
func TestAssignLocksNormalizesTrailingSlash(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	taskA, _ := store.CreateTask(ctx, "task a", "alice")
	taskB, _ := store.CreateTask(ctx, "task b", "bob")

	if _, err := store.AssignLocks(ctx, taskA.TaskID, []string{"src/"}); err != nil {
		t.Fatalf("AssignLocks failed: %v", err)
	}

	if _, err := store.AssignLocks(ctx, taskB.TaskID, []string{"src/api/handler.py"}); err == nil {
		t.Fatal("expected a lock conflict between src/ and src/api/handler.py")
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	task, err := store.CreateTask(ctx, "ship the thing", "alice")
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if _, err := store.Transition(ctx, task.TaskID, types.TaskTodo, types.TaskDone, "alice", "", "", task.Version); err != storage.ErrInvalidTransition {
		t.Fatalf("Transition(todo->done) error = %v, want ErrInvalidTransition", err)
	}

	// the task must be untouched: a second, legal transition from todo should still work.
	if _, err := store.Transition(ctx, task.TaskID, types.TaskTodo, types.TaskInProgress, "alice", "", "", task.Version); err != nil {
		t.Fatalf("legal transition after a rejected one failed: %v", err)
	}
}
