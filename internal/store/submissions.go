package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

// RecordSubmission stores one row per task of a Jira submission.
func (s *Store) RecordSubmission(ctx context.Context, sessionID uuid.UUID, report jira.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range report.Created {
		_, err = tx.Exec(ctx, `
			INSERT INTO issue_submissions (id, session_id, task_id, issue_key, issue_id)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), sessionID, c.TaskID, c.Key, c.ID,
		)
		if err != nil {
			return fmt.Errorf("insert created: %w", err)
		}
	}
	for _, f := range report.Failed {
		_, err = tx.Exec(ctx, `
			INSERT INTO issue_submissions (id, session_id, task_id, error)
			VALUES ($1, $2, $3, $4)`,
			uuid.New(), sessionID, f.TaskID, f.Error,
		)
		if err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SubmissionRow is one stored per-task submission outcome.
type SubmissionRow struct {
	TaskID   string  `json:"task_id"`
	IssueKey *string `json:"issue_key"`
	IssueID  *string `json:"issue_id"`
	Error    *string `json:"error"`
}

// ListSubmissions returns the outcomes recorded for a session, oldest first.
func (s *Store) ListSubmissions(ctx context.Context, sessionID uuid.UUID) ([]SubmissionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, issue_key, issue_id, error
		FROM issue_submissions WHERE session_id = $1 ORDER BY created_at, task_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []SubmissionRow
	for rows.Next() {
		var r SubmissionRow
		if err := rows.Scan(&r.TaskID, &r.IssueKey, &r.IssueID, &r.Error); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
