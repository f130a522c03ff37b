package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestState_NewAndSave(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "nested", "state.json")

	s, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if s.StartedAt.IsZero() {
		t.Error("new state should carry a start time")
	}
	s.MarkProcessed("a.txt")
	s.MarkContent("hash-a")
	s.TasksFound = 4

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not created: %v", err)
	}

	reloaded, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.IsProcessed("a.txt") || !reloaded.SeenContent("hash-a") || reloaded.TasksFound != 4 {
		t.Errorf("unexpected reloaded state %+v", reloaded)
	}
	if reloaded.Path() != statePath {
		t.Errorf("expected path %s, got %s", statePath, reloaded.Path())
	}
}

func TestState_IsProcessed(t *testing.T) {
	s := &State{}

	if s.IsProcessed("file1.txt") {
		t.Error("file1 should not be processed yet")
	}
	s.MarkProcessed("file1.txt")
	if !s.IsProcessed("file1.txt") {
		t.Error("file1 should be processed")
	}
	if s.IsProcessed("file2.txt") {
		t.Error("file2 should not be processed")
	}
}

func TestState_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandHome("~/x.json"); got != filepath.Join(home, "x.json") {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := expandHome("/abs/x.json"); got != "/abs/x.json" {
		t.Errorf("absolute path changed: %q", got)
	}
}
