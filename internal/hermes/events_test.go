package hermes

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.msgs = append(f.msgs, published{subject, data})
	return f.err
}

func TestTranscriptEventParsing(t *testing.T) {
	raw := `{
		"session_id": "2b1c7e1a-0000-0000-0000-000000000000",
		"transcript": "Нужно подготовить отчёт.",
		"language": "ru",
		"source": "recorder"
	}`

	var evt extractor.TranscriptEvent
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse TranscriptEvent: %v", err)
	}
	if evt.Transcript != "Нужно подготовить отчёт." {
		t.Errorf("unexpected transcript %q", evt.Transcript)
	}
	if evt.Language != "ru" || evt.Source != "recorder" {
		t.Errorf("unexpected language/source %q/%q", evt.Language, evt.Source)
	}
}

func TestTasksExtractedJSON(t *testing.T) {
	email := "a@b.co"
	evt := TasksExtracted{
		SessionID:   "s1",
		ContentHash: "abc",
		Tasks:       []extractor.Task{{ID: "t1", Summary: "x", Description: "x", AssigneeEmail: &email}},
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	task := got["tasks"].([]any)[0].(map[string]any)
	if task["assignee_email"] != "a@b.co" {
		t.Errorf("expected assignee_email, got %v", task["assignee_email"])
	}
	if v, ok := task["due_text"]; !ok || v != nil {
		t.Errorf("expected explicit null due_text, got %v (present=%v)", v, ok)
	}
}

func TestPublishReport(t *testing.T) {
	pub := &fakePublisher{}
	report := jira.Report{
		Created: []jira.Created{{TaskID: "t1", Key: "OPS-1", ID: "10001"}},
		Failed:  []jira.Failed{{TaskID: "t2", Error: "forbidden"}},
	}

	if err := PublishReport(pub, "s1", report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []published{
		{SubjectIssueCreated, IssueOutcome{SessionID: "s1", TaskID: "t1", Key: "OPS-1", IssueID: "10001"}},
		{SubjectIssueFailed, IssueOutcome{SessionID: "s1", TaskID: "t2", Error: "forbidden"}},
	}
	if diff := cmp.Diff(want, pub.msgs, cmp.AllowUnexported(published{})); diff != "" {
		t.Errorf("published mismatch (-want +got):\n%s", diff)
	}
}

func TestPublishReport_KeepsGoingOnError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	report := jira.Report{
		Created: []jira.Created{{TaskID: "t1"}, {TaskID: "t2"}},
	}

	if err := PublishReport(pub, "s1", report); err == nil {
		t.Error("expected the publish error")
	}
	if len(pub.msgs) != 2 {
		t.Errorf("expected every event attempted, got %d", len(pub.msgs))
	}
}
