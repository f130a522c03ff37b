// Package batch extracts tasks from a directory of transcript text files,
// resuming where an earlier run stopped.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
)

const (
	transcriptExt = ".txt"
	outputSuffix  = ".tasks.json"
)

// Config holds the batch command configuration.
type Config struct {
	Dir        string
	StatePath  string    // defaults to <Dir>/.taskscribe-batch-state.json
	Since      time.Time // skip files last modified before this
	SingleFile string    // process a single file only
	DryRun     bool      // extract and report, write nothing
	Source     string    // source label for persisted sessions (default: "batch")
}

// Extractor turns transcript text into tasks.
type Extractor interface {
	Extract(text string) extractor.Result
}

// SessionSink opens a persisted, announced session for a transcript.
type SessionSink interface {
	CreateSession(ctx context.Context, transcript, source string) *session.Session
}

// Output is the content of a <name>.tasks.json file.
type Output struct {
	SourceFile  string           `json:"source_file"`
	SessionID   string           `json:"session_id,omitempty"`
	ContentHash string           `json:"content_hash"`
	Fallback    bool             `json:"fallback"`
	Tasks       []extractor.Task `json:"tasks"`
}

// FileSummary is the outcome of one processed file.
type FileSummary struct {
	Path     string
	Date     string
	Tasks    int
	Fallback bool
	Errors   int
}

// Runner orchestrates a batch run.
type Runner struct {
	cfg       Config
	extractor Extractor
	sink      SessionSink
	logger    *slog.Logger
	out       io.Writer
}

// NewRunner creates a batch runner. sink may be nil, in which case results
// are only written next to the source files.
func NewRunner(cfg Config, ext Extractor, sink SessionSink, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		extractor: ext,
		sink:      sink,
		logger:    logger,
		out:       os.Stdout,
	}
}

func (r *Runner) sourceLabel() string {
	if r.cfg.Source != "" {
		return r.cfg.Source
	}
	return "batch"
}

func (r *Runner) statePath() string {
	if r.cfg.StatePath != "" {
		return r.cfg.StatePath
	}
	return filepath.Join(r.cfg.Dir, defaultStateFile)
}

// Run executes the batch. Per-file failures are recorded in the state and
// do not stop the run.
func (r *Runner) Run(ctx context.Context) ([]FileSummary, error) {
	state, err := LoadState(r.statePath())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, f := range files {
		if !state.IsProcessed(f) {
			pending = append(pending, f)
		}
	}
	state.FilesRemaining = len(pending)
	r.logger.Info("files to process",
		"discovered", len(files),
		"pending", len(pending),
		"dry_run", r.cfg.DryRun,
	)

	var summaries []FileSummary
	for _, path := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("batch interrupted, saving state")
			_ = state.Save()
			return summaries, ctx.Err()
		default:
		}

		fs, err := r.processFile(ctx, state, path)
		if err != nil {
			r.logger.Error("file failed", "path", path, "error", err)
			state.AddError(fmt.Sprintf("%s: %v", path, err))
			fs.Errors++
		}
		summaries = append(summaries, fs)

		state.MarkProcessed(path)
		state.FilesRemaining--
		if !r.cfg.DryRun {
			if err := state.Save(); err != nil {
				return summaries, fmt.Errorf("save state: %w", err)
			}
		}
	}

	r.logger.Info("batch complete",
		"files_processed", len(summaries),
		"tasks_found", state.TasksFound,
		"duplicates_skipped", state.DuplicatesSkipped,
		"errors", len(state.Errors),
	)

	fmt.Fprint(r.out, FormatSummary(summaries))
	fmt.Fprintf(r.out, "Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (nothing written)\n")
	}
	fmt.Fprintf(r.out, "State file: %s\n", state.Path())

	return summaries, nil
}

func (r *Runner) processFile(ctx context.Context, state *State, path string) (FileSummary, error) {
	fs := FileSummary{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return fs, fmt.Errorf("stat: %w", err)
	}
	fs.Date = info.ModTime().Format("2006-01-02")

	data, err := os.ReadFile(path)
	if err != nil {
		return fs, fmt.Errorf("read: %w", err)
	}
	transcript := strings.TrimSpace(string(data))
	if transcript == "" {
		r.logger.Info("skipping empty transcript", "path", path)
		return fs, nil
	}

	hash := extractor.ContentHash(transcript)
	if state.SeenContent(hash) {
		r.logger.Info("skipping duplicate transcript", "path", path, "content_hash", hash)
		state.DuplicatesSkipped++
		return fs, nil
	}

	out := Output{SourceFile: filepath.Base(path)}
	if r.sink != nil && !r.cfg.DryRun {
		snap := r.sink.CreateSession(ctx, transcript, r.sourceLabel()).Snapshot()
		out.SessionID = snap.ID.String()
		out.ContentHash = snap.ContentHash
		out.Fallback = snap.Fallback
		out.Tasks = snap.Tasks
	} else {
		res := r.extractor.Extract(transcript)
		out.ContentHash = res.ContentHash
		out.Fallback = res.Fallback
		out.Tasks = res.Tasks
	}

	if !r.cfg.DryRun {
		if err := writeOutput(outputPath(path), out); err != nil {
			return fs, err
		}
	}

	state.MarkContent(hash)
	state.TasksFound += len(out.Tasks)
	if out.Fallback {
		state.FallbackFiles++
	}
	fs.Tasks = len(out.Tasks)
	fs.Fallback = out.Fallback

	r.logger.Info("file processed", "path", path, "tasks", fs.Tasks, "fallback", fs.Fallback)
	return fs, nil
}

func outputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + outputSuffix
}

func writeOutput(path string, out Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), transcriptExt) {
			return nil
		}
		if !r.cfg.Since.IsZero() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.ModTime().Before(r.cfg.Since) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FormatSummary formats file summaries grouped by modification date.
func FormatSummary(summaries []FileSummary) string {
	byDate := make(map[string][]FileSummary)
	for _, s := range summaries {
		date := s.Date
		if date == "" {
			date = "unknown"
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("=== Batch Summary ===\n")

	for _, date := range dates {
		files := byDate[date]
		total := 0
		for _, f := range files {
			total += f.Tasks
		}
		fmt.Fprintf(&sb, "\n%s (%d files, %d tasks)\n", date, len(files), total)
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s: %d tasks", filepath.Base(f.Path), f.Tasks)
			if f.Fallback {
				sb.WriteString(" (review only)")
			}
			if f.Errors > 0 {
				fmt.Fprintf(&sb, " (%d errors)", f.Errors)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
