package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// autoRelationRules is the Cartesian-product table from §4.2: on every insert, each
// pair of tag lists below produces a subject_relations edge for every (from, to)
// combination, duplicates ignored.
var autoRelationRules = []struct {
	fromKind types.SubjectKind
	relation types.RelationType
	toKind   types.SubjectKind
}{
	{types.SubjectContext, types.RelFrames, types.SubjectProblem},
	{types.SubjectContext, types.RelAppliesTo, types.SubjectDomain},
	{types.SubjectContext, types.RelInvolves, types.SubjectEntity},
	{types.SubjectEntity, types.RelHasProblem, types.SubjectProblem},
	{types.SubjectProblem, types.RelSolvedBy, types.SubjectResolution},
	{types.SubjectResolution, types.RelAppliesTo, types.SubjectEntity},
	{types.SubjectDomain, types.RelScopes, types.SubjectEntity},
}

// tagsByKind groups an insight's five tag lists by the subject kind they upsert into.
func tagsByKind(domains, entities, problems, resolutions, contexts []string) map[types.SubjectKind][]string {
	return map[types.SubjectKind][]string{
		types.SubjectDomain:     domains,
		types.SubjectEntity:     entities,
		types.SubjectProblem:    problems,
		types.SubjectResolution: resolutions,
		types.SubjectContext:    contexts,
	}
}

// upsertSubject ensures a (kind, name) subject row exists and returns its deterministic
// id; the insert is a no-op on conflict so repeated calls across processes converge.
func upsertSubject(ctx context.Context, tx *sql.Tx, kind types.SubjectKind, rawName string) (string, bool) {
	name := types.NormalizeSubjectName(rawName)
	if name == "" {
		return "", false
	}
	id := types.SubjectID(kind, name)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO subjects (id, name, kind) VALUES (?, ?, ?)`,
		id, name, string(kind),
	); err != nil {
		return "", false
	}
	return id, true
}

// upsertInsightSubjects writes the bipartite membership rows for one insight (or KB
// chunk, via upsertKBChunkSubjects) across all five tag kinds, returning the subject
// ids grouped by kind for the auto-relation pass that follows.
func upsertInsightSubjects(ctx context.Context, tx *sql.Tx, insightID string, byKind map[types.SubjectKind][]string) (map[types.SubjectKind][]string, error) {
	ids := make(map[types.SubjectKind][]string)
	for kind, names := range byKind {
		for _, raw := range names {
			id, ok := upsertSubject(ctx, tx, kind, raw)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO insight_subjects (insight_id, subject_id) VALUES (?, ?)`,
				insightID, id,
			); err != nil {
				return nil, fmt.Errorf("failed to upsert insight_subjects: %w", err)
			}
			ids[kind] = append(ids[kind], id)
		}
	}
	return ids, nil
}

func upsertKBChunkSubjects(ctx context.Context, tx *sql.Tx, chunkID string, byKind map[types.SubjectKind][]string) error {
	for kind, names := range byKind {
		for _, raw := range names {
			id, ok := upsertSubject(ctx, tx, kind, raw)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO kb_chunk_subjects (chunk_id, subject_id) VALUES (?, ?)`,
				chunkID, id,
			); err != nil {
				return fmt.Errorf("failed to upsert kb_chunk_subjects: %w", err)
			}
		}
	}
	return nil
}

// insertSubjectRelation is the raw edge writer both the auto-relation rules and
// add_subject_relation funnel through; duplicates are ignored per the composite key.
func insertSubjectRelation(ctx context.Context, tx *sql.Tx, from string, rt types.RelationType, to string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO subject_relations (from_subject, relation_type, to_subject) VALUES (?, ?, ?)`,
		from, string(rt), to,
	)
	return err
}

// runAutoRelations applies the seven Cartesian-product rules over an insight's upserted
// subject ids, plus the git-context rules when git fields were supplied (§4.2).
func runAutoRelations(ctx context.Context, tx *sql.Tx, subjectIDs map[types.SubjectKind][]string, resolutionNames []string, git *types.GitContext) error {
	for _, rule := range autoRelationRules {
		for _, from := range subjectIDs[rule.fromKind] {
			for _, to := range subjectIDs[rule.toKind] {
				if err := insertSubjectRelation(ctx, tx, from, rule.relation, to); err != nil {
					return fmt.Errorf("failed to write auto-relation %s: %w", rule.relation, err)
				}
			}
		}
	}

	if git.IsEmpty() {
		return nil
	}

	endpoints := map[types.SubjectKind]string{
		types.SubjectRepo:    git.Repo,
		types.SubjectProject: git.Project,
		types.SubjectTask:    git.Task,
		types.SubjectPR:      git.PR,
		types.SubjectPerson:  git.Person,
	}
	ids := make(map[types.SubjectKind]string)
	for kind, name := range endpoints {
		if name == "" {
			continue
		}
		id, ok := upsertSubject(ctx, tx, kind, name)
		if !ok {
			continue
		}
		ids[kind] = id
	}

	gitRules := []struct {
		from, to types.SubjectKind
		relation types.RelationType
	}{
		{types.SubjectRepo, types.SubjectProject, types.RelContains},
		{types.SubjectProject, types.SubjectTask, types.RelContains},
		{types.SubjectTask, types.SubjectPR, types.RelProduces},
		{types.SubjectPerson, types.SubjectPR, types.RelAuthors},
		{types.SubjectPerson, types.SubjectProject, types.RelWorksOn},
	}
	for _, r := range gitRules {
		from, okFrom := ids[r.from]
		to, okTo := ids[r.to]
		if !okFrom || !okTo {
			continue
		}
		if err := insertSubjectRelation(ctx, tx, from, r.relation, to); err != nil {
			return fmt.Errorf("failed to write git-context relation %s: %w", r.relation, err)
		}
	}

	if prID, ok := ids[types.SubjectPR]; ok {
		for _, raw := range resolutionNames {
			resID, ok := upsertSubject(ctx, tx, types.SubjectResolution, raw)
			if !ok {
				continue
			}
			if err := insertSubjectRelation(ctx, tx, resID, types.RelImplementedIn, prID); err != nil {
				return fmt.Errorf("failed to write resolution->pr relation: %w", err)
			}
		}
	}

	return nil
}

// AddSubjectRelation looks up both subjects by (name, kind); it returns false, not an
// error, if either is missing (§4.2).
func (s *SQLiteStorage) AddSubjectRelation(ctx context.Context, fromName string, fromKind types.SubjectKind, toName string, toKind types.SubjectKind, rt types.RelationType) (bool, error) {
	fromID, err := s.lookupSubjectID(ctx, fromName, fromKind)
	if err != nil {
		return false, err
	}
	toID, err := s.lookupSubjectID(ctx, toName, toKind)
	if err != nil {
		return false, err
	}
	if fromID == "" || toID == "" {
		return false, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSubjectRelation(ctx, tx, fromID, rt, toID)
	})
	if err != nil {
		return false, wrapDBError("add subject relation", err)
	}
	return true, nil
}

func (s *SQLiteStorage) lookupSubjectID(ctx context.Context, name string, kind types.SubjectKind) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM subjects WHERE name = ? AND kind = ?`,
		types.NormalizeSubjectName(name), string(kind),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapDBError("lookup subject", err)
	}
	return id, nil
}

// GetSubjectRelations returns the outgoing edges from a subject, optionally filtered by
// relation type, newest-last insertion order (SQLite rowid order).
func (s *SQLiteStorage) GetSubjectRelations(ctx context.Context, name string, kind string, relationType string, limit int) ([]types.SubjectRelation, error) {
	fromID, err := s.lookupSubjectID(ctx, name, types.SubjectKind(kind))
	if err != nil {
		return nil, err
	}
	if fromID == "" {
		return nil, storage.ErrNotFound
	}

	query := `SELECT from_subject, relation_type, to_subject FROM subject_relations WHERE from_subject = ?`
	args := []interface{}{fromID}
	if relationType != "" {
		query += ` AND relation_type = ?`
		args = append(args, relationType)
	}
	query += ` ORDER BY rowid`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get subject relations", err)
	}
	defer rows.Close()

	var out []types.SubjectRelation
	for rows.Next() {
		var r types.SubjectRelation
		var rt string
		if err := rows.Scan(&r.FromSubject, &rt, &r.ToSubject); err != nil {
			return nil, wrapDBError("scan subject relation", err)
		}
		r.RelationType = types.RelationType(rt)
		out = append(out, r)
	}
	return out, wrapDBError("iterate subject relations", rows.Err())
}
