package processor

import (
	"context"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/hermes"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
	"github.com/MikeSquared-Agency/taskscribe/internal/store"
)

// SubmissionLister is implemented by stores that keep submission history.
type SubmissionLister interface {
	ListSubmissions(ctx context.Context, sessionID uuid.UUID) ([]store.SubmissionRow, error)
}

// Submit creates Jira issues for the session's selected tasks. Credentials
// are checked first and nothing is sent when any field is missing.
func (p *Processor) Submit(ctx context.Context, sess *session.Session, creds jira.Credentials) (jira.Report, error) {
	if err := creds.Validate(); err != nil {
		return jira.Report{}, err
	}
	tasks := sess.Selected()
	if len(tasks) == 0 {
		return jira.Report{}, jira.ErrNoTasksSelected
	}

	client := jira.NewClient(creds, p.due, p.logger)
	report, err := client.Submit(ctx, tasks, sess.RefTime())
	if err != nil {
		return report, err
	}
	p.deps.Metrics.ObserveSubmission(report)

	if p.deps.Store != nil {
		if err := p.deps.Store.RecordSubmission(ctx, sess.ID(), report); err != nil {
			p.logger.Error("failed to record submission", "session_id", sess.ID(), "error", err)
		}
	}
	if p.deps.Publisher != nil {
		if err := hermes.PublishReport(p.deps.Publisher, sess.ID().String(), report); err != nil {
			p.logger.Error("failed to publish issue events", "session_id", sess.ID(), "error", err)
		}
	}
	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.NotifySubmission(ctx, sess.ID().String(), tasks, report); err != nil {
			p.logger.Warn("failed to notify submission", "session_id", sess.ID(), "error", err)
		}
	}
	return report, nil
}

// Submissions returns the recorded submission outcomes of a session. It is
// empty when the store keeps no history.
func (p *Processor) Submissions(ctx context.Context, sessionID uuid.UUID) ([]store.SubmissionRow, error) {
	lister, ok := p.deps.Store.(SubmissionLister)
	if !ok {
		return []store.SubmissionRow{}, nil
	}
	rows, err := lister.ListSubmissions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.SubmissionRow{}
	}
	return rows, nil
}
