// Package slack posts submission outcomes to a Slack channel.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// NotifySubmission posts the issues created for a session. tasks supplies
// the summaries for the report's task IDs.
func (p *Poster) NotifySubmission(ctx context.Context, sessionID string, tasks []extractor.Task, report jira.Report) error {
	text := formatSubmissionMessage(sessionID, tasks, report)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted submission to slack", "ts", slackResp.TS, "session_id", sessionID)
	return nil
}

func formatSubmissionMessage(sessionID string, tasks []extractor.Task, report jira.Report) string {
	summaries := make(map[string]string, len(tasks))
	for _, t := range tasks {
		summaries[t.ID] = t.Summary
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Session:* %s\n\n", sessionID)

	if len(report.Created) > 0 {
		fmt.Fprintf(&sb, "*Issues created: %d*\n", len(report.Created))
		for i, c := range report.Created {
			fmt.Fprintf(&sb, "%d. %s %s\n", i+1, c.Key, summaries[c.TaskID])
		}
		sb.WriteString("\n")
	}

	if len(report.Failed) > 0 {
		fmt.Fprintf(&sb, "*Failed: %d*\n", len(report.Failed))
		for i, f := range report.Failed {
			fmt.Fprintf(&sb, "%d. %s\n   Error: %s\n", i+1, summaries[f.TaskID], f.Error)
		}
	}

	if len(report.Created) == 0 && len(report.Failed) == 0 {
		sb.WriteString("_Nothing was submitted._")
	}

	return sb.String()
}
