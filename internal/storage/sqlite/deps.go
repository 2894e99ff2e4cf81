package sqlite

import (
	"context"
	"fmt"
)

// AddDependencies records that taskID cannot enter in_progress until each dependsOn
// task is done; duplicate edges are ignored.
func (s *SQLiteStorage) AddDependencies(ctx context.Context, taskID string, dependsOn []string) error {
	stmt, err := s.db.PrepareContext(ctx, `
		INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare dependency insert: %w", err)
	}
	defer stmt.Close()

	for _, dep := range dependsOn {
		if dep == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, taskID, dep); err != nil {
			return wrapDBError("add dependency", err)
		}
	}
	return nil
}
