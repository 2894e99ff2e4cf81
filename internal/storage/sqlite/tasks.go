package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// isInvalidTransitionError matches the RAISE(ABORT, ...) from trg_tasks_legal_transition.
func isInvalidTransitionError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid task state transition")
}

// CreateTask inserts a task row in the todo state at version 0.
func (s *SQLiteStorage) CreateTask(ctx context.Context, title, owner string) (*types.Task, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, title, status, owner, retry_count, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, ?)
	`, id, title, string(types.TaskTodo), owner, now, now)
	if err != nil {
		return nil, wrapDBError("create task", err)
	}
	return &types.Task{
		TaskID: id, Title: title, Status: types.TaskTodo, Owner: owner,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func scanTask(row interface{ Scan(...any) error }) (*types.Task, error) {
	var t types.Task
	var status string
	if err := row.Scan(&t.TaskID, &t.Title, &status, &t.Owner, &t.RetryCount, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = types.TaskStatus(status)
	return &t, nil
}

const taskColumns = `task_id, title, status, owner, retry_count, version, created_at, updated_at`

// GetTask returns storage.ErrTaskNotFound if the task does not exist.
func (s *SQLiteStorage) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrTaskNotFound
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	return task, nil
}

func (s *SQLiteStorage) ListTasks(ctx context.Context, status string, limit int) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tasks", err)
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		out = append(out, *task)
	}
	return out, wrapDBError("iterate tasks", rows.Err())
}

// Transition performs the optimistic-concurrency CAS update: status, retry_count
// (bumped only on the blocked->todo and failed->todo retry paths) and version all move
// together, gated on the row still matching (task_id, from_state, expected_version).
// trg_tasks_legal_transition additionally rejects any (from, to) pair outside the
// exhaustive state map (§4.7), independent of whether the CAS predicate matched, so an
// illegal edge like todo->done can't sneak through just because the caller happened to
// pass the right from/version. A rowcount of zero is followed by a re-read to tell
// apart a missing task, a version mismatch, and a status mismatch.
func (s *SQLiteStorage) Transition(ctx context.Context, taskID string, from, to types.TaskStatus, actor, reason, evidence string, expectedVersion int) (*types.Task, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: status %q", storage.ErrInvalidField, to)
	}

	if to == types.TaskInProgress {
		unmet, err := s.hasUnmetDependency(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if unmet {
			return nil, storage.ErrDependencyNotMet
		}
	}

	bumpRetry := 0
	if (from == types.TaskBlocked || from == types.TaskFailed) && to == types.TaskTodo {
		bumpRetry = 1
	}

	var result *types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?,
			    retry_count = retry_count + ?,
			    version = version + 1,
			    updated_at = ?
			WHERE task_id = ? AND status = ? AND version = ?
		`, string(to), bumpRetry, now, taskID, string(from), expectedVersion)
		if err != nil {
			if isInvalidTransitionError(err) {
				return storage.ErrInvalidTransition
			}
			return fmt.Errorf("failed to transition task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read transition result: %w", err)
		}

		if n != 1 {
			var currentStatus string
			var currentVersion int
			lookupErr := tx.QueryRowContext(ctx, `SELECT status, version FROM tasks WHERE task_id = ?`, taskID).
				Scan(&currentStatus, &currentVersion)
			if lookupErr == sql.ErrNoRows {
				return storage.ErrTaskNotFound
			}
			if lookupErr != nil {
				return fmt.Errorf("failed to look up task after failed transition: %w", lookupErr)
			}
			if currentVersion != expectedVersion {
				return storage.ErrConcurrencyConflict
			}
			return storage.ErrInvalidTransition
		}

		payload := map[string]any{
			"from_state": string(from),
			"to_state":   string(to),
			"reason":     reason,
			"evidence":   evidence,
		}
		if _, err := appendEventTx(ctx, tx, taskID, "state_transition", actor, payload); err != nil {
			return err
		}

		task, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID))
		if err != nil {
			return fmt.Errorf("failed to re-read task after transition: %w", err)
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// hasUnmetDependency reports whether any dependency of taskID is not yet done (§4.7
// invariant: a task may not enter in_progress while a dependency is outstanding).
func (s *SQLiteStorage) hasUnmetDependency(ctx context.Context, taskID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_dependencies d
		JOIN tasks t ON t.task_id = d.depends_on_task_id
		WHERE d.task_id = ? AND t.status != ?
	`, taskID, string(types.TaskDone)).Scan(&count)
	if err != nil {
		return false, wrapDBError("check dependencies", err)
	}
	return count > 0, nil
}
