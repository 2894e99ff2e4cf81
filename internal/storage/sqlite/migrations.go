package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/storage/sqlite/migrations"
)

// migration pairs a monotonic version number with its idempotent body and the
// description recorded in schema_versions on success.
type migration struct {
	Version     int
	Description string
	Func        func(*sql.DB) error
}

// migrationsList is the ordered set of migrations layered on top of the bootstrap
// schema. Each must be idempotent on a fresh DB and data-preserving on existing rows
// (§4.1); new entries are appended, never reordered or renumbered.
var migrationsList = []migration{
	{1, "subjects and bipartite memberships backfill from insight tags", migrations.BackfillSubjectsFromTags},
	{2, "insight_relations shared-subject backfill", migrations.BackfillSharedSubjectRelations},
	{3, "kb chunk subject memberships backfill", migrations.BackfillKBChunkSubjects},
}

// RunMigrations applies every migration with version > MAX(schema_versions.version),
// each inside its own transaction, recording the version only on success (§4.1, invariant 6).
func RunMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read current schema version: %w", err)
	}

	for _, m := range migrationsList {
		if m.Version <= current {
			continue
		}

		// A single pooled connection (New sets SetMaxOpenConns(1)) means raw db.Exec
		// calls inside m.Func below run against the same BEGIN/COMMIT bracket: each
		// migration body takes *sql.DB rather than a *sql.Tx, wrapped in an outer
		// transaction here.
		if _, err := db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return fmt.Errorf("failed to begin migration %d transaction: %w", m.Version, err)
		}

		if err := m.Func(db); err != nil {
			_, _ = db.ExecContext(ctx, "ROLLBACK")
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_versions (version, description) VALUES (?, ?)`,
			m.Version, m.Description,
		); err != nil {
			_, _ = db.ExecContext(ctx, "ROLLBACK")
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if _, err := db.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_versions`).Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
