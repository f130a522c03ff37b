//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
)

func skipWithoutNATS(t *testing.T) Options {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return Options{URL: url, Token: os.Getenv("NATS_TOKEN"), QueueGroup: "taskscribe-test"}
}

func TestIntegration_PubSub(t *testing.T) {
	opts := skipWithoutNATS(t)
	ctx := context.Background()
	logger := slog.Default()

	client, err := NewClient(ctx, opts, logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan map[string]string, 1)

	err = client.Subscribe("taskscribe.test.>", func(subject string, data []byte) {
		var msg map[string]string
		json.Unmarshal(data, &msg)
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish("taskscribe.test.ping", map[string]string{
		"message": "hello from integration test",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg["message"] != "hello from integration test" {
			t.Errorf("expected hello message, got %v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_PublishReport(t *testing.T) {
	opts := skipWithoutNATS(t)
	client, err := NewClient(context.Background(), opts, slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan IssueOutcome, 2)
	for _, subject := range []string{SubjectIssueCreated, SubjectIssueFailed} {
		err := client.Subscribe(subject, func(_ string, data []byte) {
			var out IssueOutcome
			_ = json.Unmarshal(data, &out)
			received <- out
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	report := jira.Report{
		Created: []jira.Created{{TaskID: "t1", Key: "OPS-1", ID: "1"}},
		Failed:  []jira.Failed{{TaskID: "t2", Error: "boom"}},
	}
	if err := PublishReport(client, "s1", report); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for range 2 {
		select {
		case out := <-received:
			if out.SessionID != "s1" {
				t.Errorf("unexpected outcome %+v", out)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for outcome")
		}
	}
}
