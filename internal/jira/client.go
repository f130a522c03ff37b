// Package jira creates issues in a Jira Cloud project through the v3 REST API.
package jira

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
	"unicode/utf8"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
)

const (
	issuePath       = "/rest/api/3/issue"
	requestTimeout  = 60 * time.Second
	maxSummaryRunes = 120
	defaultSummary  = "Task"
	issueTypeName   = "Task"
)

// Credentials identify the Jira site, the account and the target project.
type Credentials struct {
	BaseURL    string `json:"url"`
	Email      string `json:"email"`
	APIToken   string `json:"api_token"`
	ProjectKey string `json:"project_key"`
}

// ValidationError lists every credential field that was left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing fields: " + strings.Join(e.Missing, ", ")
}

// Validate reports all blank fields at once, before any network call.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "URL")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "API token")
	}
	if strings.TrimSpace(c.ProjectKey) == "" {
		missing = append(missing, "Project Key")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// APIError is a non-2xx response from Jira. Body is the raw response text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira returned %d: %s", e.StatusCode, e.Body)
}

// Issue is a created Jira issue.
type Issue struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

type Client struct {
	creds  Credentials
	client *http.Client
	logger *slog.Logger
	due    DueParser
}

// DueParser resolves a task's due text into a date.
type DueParser interface {
	Parse(text string, ref time.Time) (time.Time, bool)
}

// NewClient returns a client for creds. Call Credentials.Validate first;
// the client does not re-check them.
func NewClient(creds Credentials, due DueParser, logger *slog.Logger) *Client {
	return &Client{
		creds:  creds,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
		due:    due,
	}
}

type issueFields struct {
	Project     projectRef `json:"project"`
	Summary     string     `json:"summary"`
	Description Document   `json:"description"`
	IssueType   issueType  `json:"issuetype"`
	DueDate     string     `json:"duedate,omitempty"`
}

type projectRef struct {
	Key string `json:"key"`
}

type issueType struct {
	Name string `json:"name"`
}

func buildFields(projectKey string, task extractor.Task, dueISO string) issueFields {
	summary := defaultSummary
	if task.Summary != "" {
		summary = task.Summary
		if utf8.RuneCountInString(summary) > maxSummaryRunes {
			summary = string([]rune(summary)[:maxSummaryRunes])
		}
	}
	desc := task.Description
	if desc == "" {
		desc = task.Summary
	}
	return issueFields{
		Project:     projectRef{Key: projectKey},
		Summary:     summary,
		Description: NewDocument(desc),
		IssueType:   issueType{Name: issueTypeName},
		DueDate:     dueISO,
	}
}

// CreateIssue creates one issue for task. dueISO is YYYY-MM-DD or empty.
func (c *Client) CreateIssue(ctx context.Context, task extractor.Task, dueISO string) (*Issue, error) {
	body, err := json.Marshal(map[string]any{
		"fields": buildFields(c.creds.ProjectKey, task, dueISO),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal issue payload: %w", err)
	}

	url := strings.TrimRight(c.creds.BaseURL, "/") + issuePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.creds.Email, c.creds.APIToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("parse jira response: %w", err)
	}

	c.logger.Info("created jira issue", "key", issue.Key, "task_id", task.ID)
	return &issue, nil
}
