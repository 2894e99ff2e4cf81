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

// CreateKnowledgeBase registers a named collection of externally-sourced chunks.
func (s *SQLiteStorage) CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) (string, error) {
	if !types.IsValidSourceType(kb.SourceType) {
		return "", fmt.Errorf("%w: source_type %q", storage.ErrInvalidField, kb.SourceType)
	}
	id := kb.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (id, name, description, source_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, kb.Name, kb.Description, kb.SourceType, now, now)
	if err != nil {
		return "", wrapDBError("create knowledge base", err)
	}
	return id, nil
}

func (s *SQLiteStorage) GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error) {
	var kb types.KnowledgeBase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, source_type, created_at, updated_at
		FROM knowledge_bases WHERE id = ?
	`, id).Scan(&kb.ID, &kb.Name, &kb.Description, &kb.SourceType, &kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		return nil, wrapDBError("get knowledge base", err)
	}
	return &kb, nil
}

func (s *SQLiteStorage) ListKnowledgeBases(ctx context.Context) ([]types.KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, source_type, created_at, updated_at
		FROM knowledge_bases ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, wrapDBError("list knowledge bases", err)
	}
	defer rows.Close()

	var out []types.KnowledgeBase
	for rows.Next() {
		var kb types.KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.SourceType, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, wrapDBError("scan knowledge base", err)
		}
		out = append(out, kb)
	}
	return out, wrapDBError("iterate knowledge bases", rows.Err())
}

// DeleteKnowledgeBase removes a knowledge base; its chunks cascade.
func (s *SQLiteStorage) DeleteKnowledgeBase(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return false, wrapDBError("delete knowledge base", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBError("delete knowledge base", err)
	}
	return n > 0, nil
}

const kbChunkColumns = `id, kb_id, source_url, text, normalized_text, frame, domains, entities, problems, resolutions, contexts, confidence, embedding, created_at, updated_at`

func scanKBChunk(row interface{ Scan(...any) error }) (*types.KBChunk, error) {
	var c types.KBChunk
	var frame, domains, entities, problems, resolutions, contexts string
	var embedding []byte
	if err := row.Scan(
		&c.ID, &c.KBID, &c.SourceURL, &c.Text, &c.NormalizedText, &frame, &domains, &entities,
		&problems, &resolutions, &contexts, &c.Confidence, &embedding, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Frame = types.Frame(frame)
	c.Domains = decodeTags(domains)
	c.Entities = decodeTags(entities)
	c.Problems = decodeTags(problems)
	c.Resolutions = decodeTags(resolutions)
	c.Contexts = decodeTags(contexts)
	c.Embedding = decodeEmbedding(embedding)
	return &c, nil
}

// InsertKBChunk writes a chunk and its subject-graph membership rows; KB chunks do not
// participate in the auto-relation engine, which is scoped to insights only (§4.2).
func (s *SQLiteStorage) InsertKBChunk(ctx context.Context, chunk *types.KBChunk) (string, error) {
	if !chunk.Frame.IsValid() {
		return "", fmt.Errorf("%w: frame %q", storage.ErrInvalidField, chunk.Frame)
	}
	id := chunk.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kb_chunks (
				id, kb_id, source_url, text, normalized_text, frame, domains, entities,
				problems, resolutions, contexts, confidence, embedding, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, chunk.KBID, chunk.SourceURL, chunk.Text, chunk.NormalizedText, string(chunk.Frame),
			encodeTags(chunk.Domains), encodeTags(chunk.Entities), encodeTags(chunk.Problems),
			encodeTags(chunk.Resolutions), encodeTags(chunk.Contexts),
			chunk.Confidence, encodeEmbedding(chunk.Embedding), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert kb chunk: %w", err)
		}
		byKind := tagsByKind(chunk.Domains, chunk.Entities, chunk.Problems, chunk.Resolutions, chunk.Contexts)
		return upsertKBChunkSubjects(ctx, tx, id, byKind)
	})
	if err != nil {
		return "", wrapDBError("insert kb chunk", err)
	}
	return id, nil
}

func (s *SQLiteStorage) ListKBChunks(ctx context.Context, kbID string, limit int) ([]types.KBChunk, error) {
	query := `SELECT ` + kbChunkColumns + ` FROM kb_chunks WHERE kb_id = ? ORDER BY created_at ASC`
	args := []interface{}{kbID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list kb chunks", err)
	}
	defer rows.Close()

	var out []types.KBChunk
	for rows.Next() {
		chunk, err := scanKBChunk(rows)
		if err != nil {
			return nil, wrapDBError("scan kb chunk", err)
		}
		out = append(out, *chunk)
	}
	return out, wrapDBError("iterate kb chunks", rows.Err())
}

func (s *SQLiteStorage) DeleteKBChunks(ctx context.Context, kbID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kb_chunks WHERE kb_id = ?`, kbID)
	if err != nil {
		return 0, wrapDBError("delete kb chunks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError("delete kb chunks", err)
	}
	return int(n), nil
}

func (s *SQLiteStorage) SearchKBByEmbedding(ctx context.Context, query []float32, kbID string, k int) ([]storage.KBSearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+kbChunkColumns+` FROM kb_chunks
		WHERE kb_id = ? AND embedding IS NOT NULL
		ORDER BY created_at ASC
	`, kbID)
	if err != nil {
		return nil, wrapDBError("search kb by embedding", err)
	}
	defer rows.Close()

	var results []storage.KBSearchResult
	for rows.Next() {
		chunk, err := scanKBChunk(rows)
		if err != nil {
			return nil, wrapDBError("scan kb chunk", err)
		}
		results = append(results, storage.KBSearchResult{
			Chunk: *chunk,
			Score: cosineSimilarity(query, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate kb chunks", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}
