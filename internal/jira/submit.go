package jira

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/taskscribe/internal/duedate"
	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
)

const maxErrorRunes = 160

// ErrNoTasksSelected is returned by Submit when there is nothing to create.
var ErrNoTasksSelected = errors.New("no tasks selected")

// Created pairs a task with the issue made for it.
type Created struct {
	TaskID string `json:"task_id"`
	Key    string `json:"key"`
	ID     string `json:"id"`
}

// Failed records why a task's issue could not be created.
type Failed struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// Report partitions a submission into successes and failures, each in
// task order.
type Report struct {
	Created []Created `json:"created"`
	Failed  []Failed  `json:"failed"`
}

// Submit creates one issue per task, one request at a time. A failed task
// is recorded and the rest still go out. Due text is resolved against ref.
func (c *Client) Submit(ctx context.Context, tasks []extractor.Task, ref time.Time) (Report, error) {
	report := Report{Created: []Created{}, Failed: []Failed{}}
	if len(tasks) == 0 {
		return report, ErrNoTasksSelected
	}

	for _, task := range tasks {
		issue, err := c.CreateIssue(ctx, task, c.dueISO(task, ref))
		if err != nil {
			c.logger.Warn("jira issue failed", "task_id", task.ID, "error", err)
			report.Failed = append(report.Failed, Failed{TaskID: task.ID, Error: errorDetail(err)})
			continue
		}
		report.Created = append(report.Created, Created{TaskID: task.ID, Key: issue.Key, ID: issue.ID})
	}

	c.logger.Info("jira submission complete",
		"created", len(report.Created),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (c *Client) dueISO(task extractor.Task, ref time.Time) string {
	if task.DueText == nil || c.due == nil {
		return ""
	}
	t, ok := c.due.Parse(*task.DueText, ref)
	if !ok {
		return ""
	}
	return duedate.FormatISO(t)
}

// errorDetail is the response body for API errors, capped for display.
func errorDetail(err error) string {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Body
	}
	if utf8.RuneCountInString(msg) > maxErrorRunes {
		msg = string([]rune(msg)[:maxErrorRunes])
	}
	return msg
}
