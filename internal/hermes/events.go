package hermes

import (
	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

const (
	SubjectTranscriptReady = "taskscribe.transcript.ready"
	SubjectTasksExtracted  = "taskscribe.tasks.extracted"
	SubjectIssueCreated    = "taskscribe.issue.created"
	SubjectIssueFailed     = "taskscribe.issue.failed"
	SubjectAgentRegistered = "taskscribe.agent.registered"

	SubjectTranscriptionProgress = "taskscribe.transcription.progress"
)

// TasksExtracted announces the tasks found in a session's transcript.
type TasksExtracted struct {
	SessionID   string           `json:"session_id"`
	ContentHash string           `json:"content_hash"`
	Fallback    bool             `json:"fallback"`
	Tasks       []extractor.Task `json:"tasks"`
}

// IssueOutcome reports one task's Jira submission. Exactly one of Key or
// Error is set.
type IssueOutcome struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Key       string `json:"key,omitempty"`
	IssueID   string `json:"issue_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TranscriptionProgress is published once per recognized segment while a
// transcription runs. Percent never decreases within one session.
type TranscriptionProgress struct {
	SessionID string `json:"session_id"`
	Percent   int    `json:"percent"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Text      string `json:"text"`
}

type AgentRegistered struct {
	AgentID        string   `json:"agent_id"`
	Subjects       []string `json:"subjects"`
	LexiconVersion int      `json:"lexicon_version"`
	Languages      []string `json:"languages"`
}

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// PublishReport emits one created or failed event per task in report and
// returns the first publish error, if any.
func PublishReport(p Publisher, sessionID string, report jira.Report) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range report.Created {
		keep(p.Publish(SubjectIssueCreated, IssueOutcome{SessionID: sessionID, TaskID: c.TaskID, Key: c.Key, IssueID: c.ID}))
	}
	for _, f := range report.Failed {
		keep(p.Publish(SubjectIssueFailed, IssueOutcome{SessionID: sessionID, TaskID: f.TaskID, Error: f.Error}))
	}
	return firstErr
}
