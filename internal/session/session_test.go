package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/lexicon"
)

const twoTasks = "Нужно подготовить отчёт. Затем отправить его клиенту."

func newExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("default lexicon: %v", err)
	}
	return extractor.New(lex, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func taskIDs(tasks []extractor.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestNew_AllIncluded(t *testing.T) {
	ref := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	s := New(newExtractor(t), twoTasks, ref)

	snap := s.Snapshot()
	if snap.ContentHash != extractor.ContentHash(twoTasks) {
		t.Errorf("unexpected hash %q", snap.ContentHash)
	}
	if !snap.RefTime.Equal(ref) {
		t.Errorf("unexpected ref time %v", snap.RefTime)
	}
	if diff := cmp.Diff([]string{"fa3652e5f8", "7925d910a8"}, taskIDs(s.Selected())); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
}

func TestSetIncluded(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())

	if err := s.SetIncluded("fa3652e5f8", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"7925d910a8"}, taskIDs(s.Selected())); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetIncluded("nope", true); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestSetDueText(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())
	before := s.Snapshot()

	if err := s.SetDueText("7925d910a8", "к пятнице"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	due := s.Snapshot().Tasks[1].DueText
	if due == nil || *due != "к пятнице" {
		t.Errorf("expected due text, got %v", due)
	}
	if before.Tasks[1].DueText != nil {
		t.Error("earlier snapshot must not see the edit")
	}

	if err := s.SetDueText("7925d910a8", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Snapshot().Tasks[1].DueText != nil {
		t.Error("expected empty text to clear the due text")
	}
	if err := s.SetDueText("nope", "завтра"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestSelectAllDeselectAll(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())

	s.DeselectAll()
	if got := s.Selected(); len(got) != 0 {
		t.Errorf("expected nothing selected, got %v", taskIDs(got))
	}
	s.SelectAll()
	if got := s.Selected(); len(got) != 2 {
		t.Errorf("expected everything selected, got %v", taskIDs(got))
	}
}

func TestSync(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())
	_ = s.SetIncluded("fa3652e5f8", false)

	if s.Sync(twoTasks) {
		t.Error("identical text must not count as a change")
	}
	if got := taskIDs(s.Selected()); len(got) != 1 {
		t.Errorf("unchanged text must keep selections, got %v", got)
	}

	if !s.Sync("Нужно подготовить отчёт. Затем отправить его партнёру.") {
		t.Fatal("edited text must count as a change")
	}
	snap := s.Snapshot()
	if len(snap.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %+v", snap.Tasks)
	}
	for id, inc := range snap.Included {
		if !inc {
			t.Errorf("new task %s should default to included", id)
		}
	}
	if snap.Tasks[1].Description != "отправить его партнёру" {
		t.Errorf("unexpected second task %q", snap.Tasks[1].Description)
	}
}

func TestRestore(t *testing.T) {
	ex := newExtractor(t)
	orig := New(ex, twoTasks, time.Now())
	_ = orig.SetIncluded("7925d910a8", false)

	snap := orig.Snapshot()
	delete(snap.Included, "fa3652e5f8")

	restored := Restore(ex, snap)
	if restored.ID() != orig.ID() {
		t.Errorf("expected id %s, got %s", orig.ID(), restored.ID())
	}
	if diff := cmp.Diff([]string{"fa3652e5f8"}, taskIDs(restored.Selected())); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())
	snap := s.Snapshot()
	snap.Included["fa3652e5f8"] = false
	snap.Tasks[0].Summary = "changed"

	if len(s.Selected()) != 2 || s.Selected()[0].Summary != "подготовить отчёт" {
		t.Error("mutating a snapshot must not affect the session")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := New(newExtractor(t), twoTasks, time.Now())
	r.Put(s)

	got, err := r.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("expected stored session, got %v, %v", got, err)
	}
	if _, err := r.Get(uuid.New()); !errors.Is(err, ErrSessionMissing) {
		t.Errorf("expected ErrSessionMissing, got %v", err)
	}
	r.Delete(s.ID())
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := New(newExtractor(t), twoTasks, time.Now())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 4 {
			case 0:
				s.Sync(twoTasks)
			case 1:
				_ = s.SetIncluded("fa3652e5f8", i%8 == 1)
			case 2:
				_ = s.Selected()
			case 3:
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
}
