package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

// Insert writes the insight row, its denormalized tag columns, the subject graph
// membership rows, and the auto-relation edges derived from it, all in one transaction
// (§4.2).
func (s *SQLiteStorage) Insert(ctx context.Context, insight *types.Insight, git *types.GitContext) (string, error) {
	if !insight.Frame.IsValid() {
		return "", fmt.Errorf("%w: frame %q", storage.ErrInvalidField, insight.Frame)
	}

	id := insight.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO insights (
				id, text, normalized_text, frame, domains, entities, problems, resolutions,
				contexts, confidence, source, embedding, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, insight.Text, insight.NormalizedText, string(insight.Frame),
			encodeTags(insight.Domains), encodeTags(insight.Entities), encodeTags(insight.Problems),
			encodeTags(insight.Resolutions), encodeTags(insight.Contexts),
			insight.Confidence, insight.Source, encodeEmbedding(insight.Embedding), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert insight: %w", err)
		}

		byKind := tagsByKind(insight.Domains, insight.Entities, insight.Problems, insight.Resolutions, insight.Contexts)
		subjectIDs, err := upsertInsightSubjects(ctx, tx, id, byKind)
		if err != nil {
			return err
		}

		return runAutoRelations(ctx, tx, subjectIDs, insight.Resolutions, git)
	})
	if err != nil {
		return "", wrapDBError("insert insight", err)
	}
	return id, nil
}

func scanInsight(row interface{ Scan(...any) error }) (*types.Insight, error) {
	var i types.Insight
	var frame, domains, entities, problems, resolutions, contexts string
	var embedding []byte
	if err := row.Scan(
		&i.ID, &i.Text, &i.NormalizedText, &frame, &domains, &entities, &problems,
		&resolutions, &contexts, &i.Confidence, &i.Source, &embedding,
		&i.CreatedAt, &i.UpdatedAt,
	); err != nil {
		return nil, err
	}
	i.Frame = types.Frame(frame)
	i.Domains = decodeTags(domains)
	i.Entities = decodeTags(entities)
	i.Problems = decodeTags(problems)
	i.Resolutions = decodeTags(resolutions)
	i.Contexts = decodeTags(contexts)
	i.Embedding = decodeEmbedding(embedding)
	return &i, nil
}

const insightColumns = `id, text, normalized_text, frame, domains, entities, problems, resolutions, contexts, confidence, source, embedding, created_at, updated_at`

const insightColumnsPrefixed = `i.id, i.text, i.normalized_text, i.frame, i.domains, i.entities, i.problems, i.resolutions, i.contexts, i.confidence, i.source, i.embedding, i.created_at, i.updated_at`

// Get returns a single insight by id, or storage.ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*types.Insight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id)
	insight, err := scanInsight(row)
	if err != nil {
		return nil, wrapDBError("get insight", err)
	}
	return insight, nil
}

// Update applies a strict allowlisted field set to an existing insight. When any tag
// list is supplied, subject memberships and auto-relation edges are upserted for the
// insight's full resulting tag set; membership rows and edges for tags that were removed
// are not deleted.
func (s *SQLiteStorage) Update(ctx context.Context, id string, fields storage.UpdateFields) (*types.Insight, error) {
	var updated *types.Insight
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanInsight(tx.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id))
		if err != nil {
			return err
		}

		if fields.Text != nil {
			existing.Text = *fields.Text
		}
		if fields.NormalizedText != nil {
			existing.NormalizedText = *fields.NormalizedText
		}
		if fields.Frame != nil {
			if !fields.Frame.IsValid() {
				return fmt.Errorf("%w: frame %q", storage.ErrInvalidField, *fields.Frame)
			}
			existing.Frame = *fields.Frame
		}
		if fields.Domains != nil {
			existing.Domains = *fields.Domains
		}
		if fields.Entities != nil {
			existing.Entities = *fields.Entities
		}
		if fields.Problems != nil {
			existing.Problems = *fields.Problems
		}
		if fields.Resolutions != nil {
			existing.Resolutions = *fields.Resolutions
		}
		if fields.Contexts != nil {
			existing.Contexts = *fields.Contexts
		}
		if fields.Confidence != nil {
			if *fields.Confidence < 0 || *fields.Confidence > 1 {
				return fmt.Errorf("%w: confidence %f out of range", storage.ErrInvalidField, *fields.Confidence)
			}
			existing.Confidence = *fields.Confidence
		}
		if fields.Source != nil {
			existing.Source = *fields.Source
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE insights SET
				text = ?, normalized_text = ?, frame = ?, domains = ?, entities = ?,
				problems = ?, resolutions = ?, contexts = ?, confidence = ?, source = ?,
				updated_at = ?
			WHERE id = ?
		`,
			existing.Text, existing.NormalizedText, string(existing.Frame),
			encodeTags(existing.Domains), encodeTags(existing.Entities), encodeTags(existing.Problems),
			encodeTags(existing.Resolutions), encodeTags(existing.Contexts),
			existing.Confidence, existing.Source, now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update insight: %w", err)
		}
		existing.UpdatedAt = now

		if fields.Domains != nil || fields.Entities != nil || fields.Problems != nil ||
			fields.Resolutions != nil || fields.Contexts != nil {
			byKind := tagsByKind(existing.Domains, existing.Entities, existing.Problems, existing.Resolutions, existing.Contexts)
			subjectIDs, err := upsertInsightSubjects(ctx, tx, id, byKind)
			if err != nil {
				return err
			}
			if err := runAutoRelations(ctx, tx, subjectIDs, existing.Resolutions, nil); err != nil {
				return err
			}
		}

		updated = existing
		return nil
	})
	if err != nil {
		return nil, wrapDBError("update insight", err)
	}
	return updated, nil
}

// Delete removes an insight; membership and relation rows cascade via foreign keys.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE id = ?`, id)
	if err != nil {
		return false, wrapDBError("delete insight", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBError("delete insight", err)
	}
	return n > 0, nil
}

// SearchByEmbedding performs a linear scan ranking by cosine similarity, optionally
// pre-filtered by domain substring match, breaking score ties by insertion order (§4.2).
func (s *SQLiteStorage) SearchByEmbedding(ctx context.Context, query []float32, k int, domain string) ([]storage.SearchResult, error) {
	sqlQuery := `SELECT ` + insightColumns + ` FROM insights WHERE embedding IS NOT NULL`
	var args []interface{}
	if domain != "" {
		sqlQuery += ` AND domains LIKE ?`
		args = append(args, "%"+domain+"%")
	}
	sqlQuery += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, wrapDBError("search by embedding", err)
	}
	defer rows.Close()

	var results []storage.SearchResult
	for idx := 0; rows.Next(); idx++ {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, wrapDBError("scan insight", err)
		}
		results = append(results, storage.SearchResult{
			Insight: *insight,
			Score:   cosineSimilarity(query, insight.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate insights", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ListAll returns insights optionally filtered by domain substring and exact frame,
// newest-first.
func (s *SQLiteStorage) ListAll(ctx context.Context, domain, frame string, limit int) ([]types.Insight, error) {
	query := `SELECT ` + insightColumns + ` FROM insights WHERE 1=1`
	var args []interface{}
	if domain != "" {
		query += ` AND domains LIKE ?`
		args = append(args, "%"+domain+"%")
	}
	if frame != "" {
		query += ` AND frame = ?`
		args = append(args, frame)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list insights", err)
	}
	defer rows.Close()

	var out []types.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, wrapDBError("scan insight", err)
		}
		out = append(out, *insight)
	}
	return out, wrapDBError("iterate insights", rows.Err())
}

// SearchBySubject finds insights through the subject membership join rather than the
// text columns, so it matches even after the denormalized tag text has drifted.
func (s *SQLiteStorage) SearchBySubject(ctx context.Context, name string, kind string, limit int) ([]types.Insight, error) {
	query := `
		SELECT ` + insightColumnsPrefixed + `
		FROM insights i
		JOIN insight_subjects isub ON isub.insight_id = i.id
		JOIN subjects s ON s.id = isub.subject_id
		WHERE s.name = ?
	`
	args := []interface{}{types.NormalizeSubjectName(name)}
	if kind != "" {
		query += ` AND s.kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY i.created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("search by subject", err)
	}
	defer rows.Close()

	var out []types.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, wrapDBError("scan insight", err)
		}
		out = append(out, *insight)
	}
	return out, wrapDBError("iterate insights", rows.Err())
}

// RelatedInsights returns edges touching id (either direction), ordered by weight desc.
func (s *SQLiteStorage) RelatedInsights(ctx context.Context, id string, limit int) ([]types.InsightRelation, error) {
	query := `
		SELECT from_id, to_id, relation_type, weight FROM insight_relations
		WHERE from_id = ? OR to_id = ?
		ORDER BY weight DESC
	`
	args := []interface{}{id, id}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("related insights", err)
	}
	defer rows.Close()

	var out []types.InsightRelation
	for rows.Next() {
		var r types.InsightRelation
		if err := rows.Scan(&r.FromID, &r.ToID, &r.RelationType, &r.Weight); err != nil {
			return nil, wrapDBError("scan insight relation", err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("iterate insight relations", rows.Err())
}
