package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/lexicon"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("default lexicon: %v", err)
	}
	return extractor.New(lex, discardLogger())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readOutput(t *testing.T, path string) Output {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return out
}

type fakeSink struct {
	ex      *extractor.Extractor
	sources []string
}

func (f *fakeSink) CreateSession(_ context.Context, transcript, source string) *session.Session {
	f.sources = append(f.sources, source)
	return session.New(f.ex, transcript, time.Now())
}

func TestRun_WritesOutputsAndResumes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "standup.txt", "Нужно подготовить отчёт. Затем отправить его клиенту.")
	writeFile(t, dir, "sub/chat.txt", "Hello there, nice weather today.")
	writeFile(t, dir, "empty.txt", "   \n")
	writeFile(t, dir, "notes.md", "Fix the bug.")

	r := NewRunner(Config{Dir: dir}, newExtractor(t), nil, discardLogger())
	var buf bytes.Buffer
	r.out = &buf

	summaries, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 processed files, got %d", len(summaries))
	}

	out := readOutput(t, filepath.Join(dir, "standup.tasks.json"))
	if len(out.Tasks) != 2 || out.Fallback || out.SourceFile != "standup.txt" {
		t.Errorf("unexpected standup output %+v", out)
	}
	out = readOutput(t, filepath.Join(dir, "sub", "chat.tasks.json"))
	if !out.Fallback || len(out.Tasks) != 1 {
		t.Errorf("expected fallback output, got %+v", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.tasks.json")); !os.IsNotExist(err) {
		t.Error("empty transcript must not produce an output file")
	}
	if !strings.Contains(buf.String(), "Batch Summary") {
		t.Errorf("expected summary output, got %q", buf.String())
	}

	// A second run finds nothing new.
	summaries, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected resumed run to skip processed files, got %d", len(summaries))
	}

	state, _ := LoadState(filepath.Join(dir, defaultStateFile))
	if state.TasksFound != 3 || state.FallbackFiles != 1 {
		t.Errorf("unexpected state totals %+v", state)
	}
}

func TestRun_SkipsDuplicateContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Fix the login bug.")
	writeFile(t, dir, "b.txt", "Fix the login bug.\n")

	r := NewRunner(Config{Dir: dir}, newExtractor(t), nil, discardLogger())
	r.out = io.Discard
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "b.tasks.json")); !os.IsNotExist(err) {
		t.Error("duplicate transcript must not produce an output file")
	}
	state, _ := LoadState(filepath.Join(dir, defaultStateFile))
	if state.DuplicatesSkipped != 1 {
		t.Errorf("expected 1 duplicate, got %d", state.DuplicatesSkipped)
	}
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Deploy the service.")
	sink := &fakeSink{ex: newExtractor(t)}

	r := NewRunner(Config{Dir: dir, DryRun: true}, newExtractor(t), sink, discardLogger())
	r.out = io.Discard
	summaries, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Tasks != 1 {
		t.Errorf("unexpected summaries %+v", summaries)
	}
	if len(sink.sources) != 0 {
		t.Error("dry run must not open sessions")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dry run must not write files, found %d entries", len(entries))
	}
}

func TestRun_UsesSessionSink(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Deploy the service.")
	sink := &fakeSink{ex: newExtractor(t)}

	r := NewRunner(Config{Dir: dir, Source: "archive"}, newExtractor(t), sink, discardLogger())
	r.out = io.Discard
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.sources) != 1 || sink.sources[0] != "archive" {
		t.Errorf("expected one session with source archive, got %v", sink.sources)
	}
	if out := readOutput(t, filepath.Join(dir, "a.tasks.json")); out.SessionID == "" {
		t.Error("expected session id in output")
	}
}

func TestRun_SingleFileAndSince(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.txt", "Fix the old bug.")
	writeFile(t, dir, "new.txt", "Fix the new bug.")
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(Config{Dir: dir, Since: time.Now().Add(-time.Hour)}, newExtractor(t), nil, discardLogger())
	r.out = io.Discard
	summaries, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(summaries) != 1 || filepath.Base(summaries[0].Path) != "new.txt" {
		t.Errorf("expected only new.txt, got %+v", summaries)
	}

	r = NewRunner(Config{Dir: dir, SingleFile: filepath.Join(dir, "missing.txt")}, newExtractor(t), nil, discardLogger())
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error for missing single file")
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Fix the bug.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(Config{Dir: dir}, newExtractor(t), nil, discardLogger())
	r.out = io.Discard
	if _, err := r.Run(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary([]FileSummary{
		{Path: "/x/b.txt", Date: "2024-03-14", Tasks: 1, Fallback: true},
		{Path: "/x/a.txt", Date: "2024-03-13", Tasks: 2, Errors: 1},
	})
	if strings.Index(text, "2024-03-13") > strings.Index(text, "2024-03-14") {
		t.Error("dates should be sorted")
	}
	for _, want := range []string{"a.txt: 2 tasks (1 errors)", "b.txt: 1 tasks (review only)", "(1 files, 2 tasks)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected summary to contain %q:\n%s", want, text)
		}
	}
}
