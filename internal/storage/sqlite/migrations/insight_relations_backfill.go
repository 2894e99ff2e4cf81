package migrations

import (
	"database/sql"
	"fmt"
)

// BackfillSharedSubjectRelations gives any pair of insights sharing at least one subject
// one insight_relations row, weight = shared subject count, stored canonically with
// from_id < to_id (§4.1). Re-running recomputes nothing new: the ON CONFLICT upsert keys
// on (from_id, to_id, relation_type) so a second pass converges to the same rows.
func BackfillSharedSubjectRelations(db *sql.DB) error {
	rows, err := db.Query(`
		SELECT a.insight_id, b.insight_id, COUNT(*) as shared
		FROM insight_subjects a
		JOIN insight_subjects b ON a.subject_id = b.subject_id AND a.insight_id < b.insight_id
		GROUP BY a.insight_id, b.insight_id
	`)
	if err != nil {
		return fmt.Errorf("failed to compute shared-subject pairs: %w", err)
	}
	defer rows.Close()

	type pair struct {
		from, to string
		shared   int
	}
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.from, &p.to, &p.shared); err != nil {
			return fmt.Errorf("failed to scan shared-subject pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating shared-subject pairs: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO insight_relations (from_id, to_id, relation_type, weight)
		VALUES (?, ?, 'shared_subject', ?)
		ON CONFLICT(from_id, to_id, relation_type) DO UPDATE SET weight = excluded.weight
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insight_relations upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.Exec(p.from, p.to, float64(p.shared)); err != nil {
			return fmt.Errorf("failed to upsert insight_relation %s->%s: %w", p.from, p.to, err)
		}
	}

	return nil
}
