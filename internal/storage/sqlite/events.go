package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/untoldecay/semanticmemory/internal/types"
)

// appendEventTx is the shared writer Transition uses for its implicit state_transition
// event and AppendEvent uses for caller-supplied events.
func appendEventTx(ctx context.Context, tx *sql.Tx, taskID, eventType, actor string, payload map[string]any) (*types.TaskEvent, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_events (id, task_id, event_type, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, taskID, eventType, actor, string(payloadJSON), now)
	if err != nil {
		return nil, fmt.Errorf("failed to append task event: %w", err)
	}
	return &types.TaskEvent{
		ID: id, TaskID: taskID, EventType: eventType, Actor: actor, Payload: payload, CreatedAt: now,
	}, nil
}

// AppendEvent records an arbitrary, caller-supplied event against a task's history.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, taskID, eventType, actor string, payload map[string]any) (*types.TaskEvent, error) {
	var event *types.TaskEvent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := appendEventTx(ctx, tx, taskID, eventType, actor, payload)
		if err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, wrapDBError("append event", err)
	}
	return event, nil
}

// ListEvents returns a task's event history, newest-first, paginated by limit.
func (s *SQLiteStorage) ListEvents(ctx context.Context, taskID string, limit int) ([]types.TaskEvent, error) {
	query := `SELECT id, task_id, event_type, actor, payload, created_at FROM task_events WHERE task_id = ? ORDER BY created_at DESC`
	args := []interface{}{taskID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list events", err)
	}
	defer rows.Close()

	var out []types.TaskEvent
	for rows.Next() {
		var e types.TaskEvent
		var payloadJSON string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.EventType, &e.Actor, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		if payloadJSON != "" {
			_ = json.Unmarshal([]byte(payloadJSON), &e.Payload)
		}
		out = append(out, e)
	}
	return out, wrapDBError("iterate events", rows.Err())
}
