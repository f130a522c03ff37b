package hermes

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go"
)

func TestOptions_Defaults(t *testing.T) {
	got := Options{URL: "nats://bus:4222"}.withDefaults()
	want := Options{
		URL:           "nats://bus:4222",
		Name:          DefaultName,
		QueueGroup:    DefaultQueueGroup,
		MaxReconnects: DefaultMaxReconnects,
		ReconnectWait: DefaultReconnectWait,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	custom := Options{Name: "scribe-eu", QueueGroup: "scribe-eu", MaxReconnects: -1, ReconnectWait: time.Second}
	if diff := cmp.Diff(custom, custom.withDefaults()); diff != "" {
		t.Errorf("explicit values must be kept (-want +got):\n%s", diff)
	}
}

func TestOptions_NatsOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := Options{Token: "s3cr3t", Name: "scribe-eu", MaxReconnects: 5, ReconnectWait: 3 * time.Second}.withDefaults()

	applied := nats.GetDefaultOptions()
	for _, opt := range o.natsOptions(logger) {
		if err := opt(&applied); err != nil {
			t.Fatalf("apply option: %v", err)
		}
	}

	if applied.Name != "scribe-eu" || applied.Token != "s3cr3t" {
		t.Errorf("unexpected name/token %q/%q", applied.Name, applied.Token)
	}
	if applied.MaxReconnect != 5 || applied.ReconnectWait != 3*time.Second {
		t.Errorf("unexpected reconnect policy %d/%s", applied.MaxReconnect, applied.ReconnectWait)
	}
	if !applied.RetryOnFailedConnect {
		t.Error("expected retry on failed connect")
	}
}
