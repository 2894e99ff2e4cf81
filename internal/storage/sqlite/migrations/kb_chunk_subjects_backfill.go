package migrations

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/types"
)

// BackfillKBChunkSubjects mirrors BackfillSubjectsFromTags for kb_chunks, which share
// the insight row shape but live in their own table (§3, "KB chunk — identical to
// Insight except kb_id replaces source").
func BackfillKBChunkSubjects(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, domains, entities, problems, resolutions, contexts FROM kb_chunks`)
	if err != nil {
		return fmt.Errorf("failed to query kb_chunks for subject backfill: %w", err)
	}
	defer rows.Close()

	type tagged struct {
		id                                                  string
		domains, entities, problems, resolutions, contexts []string
	}
	var all []tagged
	for rows.Next() {
		var t tagged
		var domainsJSON, entitiesJSON, problemsJSON, resolutionsJSON, contextsJSON string
		if err := rows.Scan(&t.id, &domainsJSON, &entitiesJSON, &problemsJSON, &resolutionsJSON, &contextsJSON); err != nil {
			return fmt.Errorf("failed to scan kb_chunk row: %w", err)
		}
		_ = json.Unmarshal([]byte(domainsJSON), &t.domains)
		_ = json.Unmarshal([]byte(entitiesJSON), &t.entities)
		_ = json.Unmarshal([]byte(problemsJSON), &t.problems)
		_ = json.Unmarshal([]byte(resolutionsJSON), &t.resolutions)
		_ = json.Unmarshal([]byte(contextsJSON), &t.contexts)
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating kb_chunks: %w", err)
	}

	upsertSubject, err := db.Prepare(`INSERT OR IGNORE INTO subjects (id, name, kind) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare subject upsert: %w", err)
	}
	defer upsertSubject.Close()

	upsertMembership, err := db.Prepare(`INSERT OR IGNORE INTO kb_chunk_subjects (chunk_id, subject_id) VALUES (?, ?)`)
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
					return fmt.Errorf("failed to upsert membership for kb_chunk %s: %w", t.id, err)
				}
			}
		}
	}

	return nil
}
