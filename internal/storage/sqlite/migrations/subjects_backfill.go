// Package migrations holds idempotent, data-preserving schema migration bodies run by
// the runner in ../migrations.go, one file per migration.
package migrations

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/types"
)

// BackfillSubjectsFromTags upserts subjects + insight_subjects rows for every tag
// already present on existing insights. Safe to re-run: every write goes through
// INSERT OR IGNORE, so a second pass touches nothing.
func BackfillSubjectsFromTags(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, domains, entities, problems, resolutions, contexts FROM insights`)
	if err != nil {
		return fmt.Errorf("failed to query insights for subject backfill: %w", err)
	}
	defer rows.Close()

	type tagged struct {
		id                                                                   string
		domains, entities, problems, resolutions, contexts []string
	}
	var all []tagged
	for rows.Next() {
		var t tagged
		var domainsJSON, entitiesJSON, problemsJSON, resolutionsJSON, contextsJSON string
		if err := rows.Scan(&t.id, &domainsJSON, &entitiesJSON, &problemsJSON, &resolutionsJSON, &contextsJSON); err != nil {
			return fmt.Errorf("failed to scan insight row: %w", err)
		}
		_ = json.Unmarshal([]byte(domainsJSON), &t.domains)
		_ = json.Unmarshal([]byte(entitiesJSON), &t.entities)
		_ = json.Unmarshal([]byte(problemsJSON), &t.problems)
		_ = json.Unmarshal([]byte(resolutionsJSON), &t.resolutions)
		_ = json.Unmarshal([]byte(contextsJSON), &t.contexts)
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating insights: %w", err)
	}

	upsertSubject, err := db.Prepare(`INSERT OR IGNORE INTO subjects (id, name, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare subject upsert: %w", err)
	}
	defer upsertSubject.Close()

	upsertMembership, err := db.Prepare(`INSERT OR IGNORE INTO insight_subjects (insight_id, subject_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare membership upsert: %w", err)
	}
	defer upsertMembership.Close()

	for _, t := range all {
		groups := []struct {
			kind   types.SubjectKind
			values []string
		}{
			{types.SubjectDomain, t.domains},
			{types.SubjectEntity, t.entities},
			{types.SubjectProblem, t.problems},
			{types.SubjectResolution, t.resolutions},
			{types.SubjectContext, t.contexts},
		}
		for _, g := range groups {
			for _, raw := range g.values {
				name := types.NormalizeSubjectName(raw)
				if name == "" {
					continue
				}
				id := types.SubjectID(g.kind, name)
				if _, err := upsertSubject.Exec(id, name, string(g.kind)); err != nil {
					return fmt.Errorf("failed to upsert subject %s/%s: %w", g.kind, name, err)
				}
				if _, err := upsertMembership.Exec(t.id, id); err != nil {
					return fmt.Errorf("failed to upsert membership for insight %s: %w", t.id, err)
				}
			}
		}
	}

	return nil
}
