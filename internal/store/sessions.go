package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
)

// ErrNotFound is returned when a session or task row does not exist.
var ErrNotFound = errors.New("not found")

// SaveSession upserts the session row and replaces its task rows.
func (s *Store) SaveSession(ctx context.Context, snap session.Snapshot, source string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO transcript_sessions (id, content_hash, transcript, fallback, ref_time, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			transcript   = EXCLUDED.transcript,
			fallback     = EXCLUDED.fallback,
			updated_at   = now()`,
		snap.ID, snap.ContentHash, snap.Transcript, snap.Fallback, snap.RefTime, source,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_tasks WHERE session_id = $1`, snap.ID); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	batch := &pgx.Batch{}
	for i, t := range snap.Tasks {
		included, ok := snap.Included[t.ID]
		batch.Queue(`
			INSERT INTO session_tasks (session_id, task_id, position, summary, description, assignee_email, due_text, included)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			snap.ID, t.ID, i, t.Summary, t.Description, t.AssigneeEmail, t.DueText, !ok || included,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert tasks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadSession reads a stored session with its tasks in extraction order.
func (s *Store) LoadSession(ctx context.Context, id uuid.UUID) (session.Snapshot, error) {
	snap := session.Snapshot{ID: id, Included: map[string]bool{}}

	err := s.pool.QueryRow(ctx, `
		SELECT content_hash, transcript, fallback, ref_time
		FROM transcript_sessions WHERE id = $1`, id,
	).Scan(&snap.ContentHash, &snap.Transcript, &snap.Fallback, &snap.RefTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("query session: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT task_id, summary, description, assignee_email, due_text, included
		FROM session_tasks WHERE session_id = $1 ORDER BY position`, id)
	if err != nil {
		return snap, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	snap.Tasks = []extractor.Task{}
	for rows.Next() {
		var t extractor.Task
		var included bool
		if err := rows.Scan(&t.ID, &t.Summary, &t.Description, &t.AssigneeEmail, &t.DueText, &included); err != nil {
			return snap, fmt.Errorf("scan task: %w", err)
		}
		snap.Tasks = append(snap.Tasks, t)
		snap.Included[t.ID] = included
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate tasks: %w", err)
	}
	return snap, nil
}

// SetTaskIncluded updates one task's inclusion flag.
func (s *Store) SetTaskIncluded(ctx context.Context, sessionID uuid.UUID, taskID string, included bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_tasks SET included = $1
		WHERE session_id = $2 AND task_id = $3`,
		included, sessionID, taskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTaskDueText replaces one task's deadline phrase; nil clears it.
func (s *Store) SetTaskDueText(ctx context.Context, sessionID uuid.UUID, taskID string, dueText *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE session_tasks SET due_text = $1
		WHERE session_id = $2 AND task_id = $3`,
		dueText, sessionID, taskID,
	)
	if err != nil {
		return fmt.Errorf("update due text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAllIncluded updates every task of a session at once.
func (s *Store) SetAllIncluded(ctx context.Context, sessionID uuid.UUID, included bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE session_tasks SET included = $1 WHERE session_id = $2`, included, sessionID)
	if err != nil {
		return fmt.Errorf("update tasks: %w", err)
	}
	return nil
}
