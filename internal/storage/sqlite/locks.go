package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/validate"
)

// isLockConflictError matches both the partial unique index violation (exact duplicate
// resource) and the RAISE(ABORT, ...) from trg_task_locks_no_prefix_overlap.
func isLockConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "lock conflict")
}

// AssignLocks claims each resource for taskID inside one transaction. Each resource is
// normalized (validate.NormalizeResource: backslash-to-slash, path.Clean, trailing
// slash stripped) before insert, so a lock on "src/" is stored as "src" and the
// trg_task_locks_no_prefix_overlap trigger's `resource || '/%'` prefix test actually
// catches overlaps like "src/api/handler.py". If any resource conflicts with an active
// lock held by a different task (exact match or path-prefix overlap), the whole batch
// is rolled back and storage.ErrLockConflict is returned (§4.7 invariant 5).
func (s *SQLiteStorage) AssignLocks(ctx context.Context, taskID string, resources []string) ([]string, error) {
	var lockIDs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, resource := range resources {
			resource = validate.NormalizeResource(resource)
			if resource == "" {
				continue
			}
			lockID := uuid.NewString()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO task_locks (id, task_id, resource, active, created_at)
				VALUES (?, ?, ?, 1, ?)
			`, lockID, taskID, resource, time.Now().UTC())
			if err != nil {
				if isLockConflictError(err) {
					return storage.ErrLockConflict
				}
				return err
			}
			lockIDs = append(lockIDs, lockID)
		}
		return nil
	})
	if err != nil {
		if err == storage.ErrLockConflict {
			return nil, err
		}
		return nil, wrapDBError("assign locks", err)
	}
	return lockIDs, nil
}

// ReleaseLocks deactivates every active lock held by taskID and returns how many were
// released; it never deletes rows, preserving history for ListEvents/debugging.
func (s *SQLiteStorage) ReleaseLocks(ctx context.Context, taskID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_locks SET active = 0 WHERE task_id = ? AND active = 1
	`, taskID)
	if err != nil {
		return 0, wrapDBError("release locks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("release locks", err)
	}
	return int(n), nil
}
