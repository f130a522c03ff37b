package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const defaultStateFile = ".taskscribe-batch-state.json"

// State tracks progress for resumable batch runs.
type State struct {
	StartedAt         time.Time `json:"started_at"`
	LastProcessedAt   time.Time `json:"last_processed_at"`
	FilesProcessed    []string  `json:"files_processed"`
	FilesRemaining    int       `json:"files_remaining"`
	TasksFound        int       `json:"tasks_found"`
	FallbackFiles     int       `json:"fallback_files"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	ContentHashes     []string  `json:"content_hashes"`
	Errors            []string  `json:"errors"`

	path string // not serialized
}

// LoadState loads the batch state from path, or starts a new one.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) Path() string {
	return s.path
}

func (s *State) IsProcessed(path string) bool {
	return slices.Contains(s.FilesProcessed, path)
}

func (s *State) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

// SeenContent reports whether a transcript with this hash was already
// extracted in this or an earlier run.
func (s *State) SeenContent(hash string) bool {
	return slices.Contains(s.ContentHashes, hash)
}

func (s *State) MarkContent(hash string) {
	s.ContentHashes = append(s.ContentHashes, hash)
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
