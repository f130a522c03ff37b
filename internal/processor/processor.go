package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/hermes"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
	"github.com/MikeSquared-Agency/taskscribe/internal/metrics"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
	"github.com/MikeSquared-Agency/taskscribe/internal/store"
	"github.com/MikeSquared-Agency/taskscribe/internal/transcription"
)

// SessionStore persists sessions and submission outcomes.
type SessionStore interface {
	SaveSession(ctx context.Context, snap session.Snapshot, source string) error
	LoadSession(ctx context.Context, id uuid.UUID) (session.Snapshot, error)
	SetTaskIncluded(ctx context.Context, sessionID uuid.UUID, taskID string, included bool) error
	SetAllIncluded(ctx context.Context, sessionID uuid.UUID, included bool) error
	SetTaskDueText(ctx context.Context, sessionID uuid.UUID, taskID string, dueText *string) error
	RecordSubmission(ctx context.Context, sessionID uuid.UUID, report jira.Report) error
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcription.Request, onSegment func(transcription.Progress)) (*transcription.Result, error)
}

// Notifier announces finished submissions to people, e.g. a chat channel.
type Notifier interface {
	NotifySubmission(ctx context.Context, sessionID string, tasks []extractor.Task, report jira.Report) error
}

// Deps are the optional collaborators of a Processor. Nil fields disable
// the corresponding feature.
type Deps struct {
	Store       SessionStore
	Publisher   hermes.Publisher
	Transcriber Transcriber
	Notifier    Notifier
	Metrics     *metrics.Metrics
}

// Processor orchestrates taskscribe's pipeline: transcript in, session with
// extracted tasks out, then submission of the selected tasks to Jira.
type Processor struct {
	extractor *extractor.Extractor
	sessions  *session.Registry
	deps      Deps
	due       jira.DueParser
	logger    *slog.Logger
	http      *http.Client
	now       func() time.Time
}

func New(ext *extractor.Extractor, sessions *session.Registry, due jira.DueParser, deps Deps, logger *slog.Logger) *Processor {
	return &Processor{
		extractor: ext,
		sessions:  sessions,
		deps:      deps,
		due:       due,
		logger:    logger,
		http:      &http.Client{Timeout: 5 * time.Minute},
		now:       time.Now,
	}
}

// Extract runs the extraction pipeline and records metrics. It satisfies
// session.Extractor.
func (p *Processor) Extract(text string) extractor.Result {
	start := time.Now()
	res := p.extractor.Extract(text)
	p.deps.Metrics.ObserveExtraction(res, time.Since(start))
	return res
}

// CreateSession extracts tasks from transcript into a new session, keeps it
// in the registry, persists it and announces the result.
func (p *Processor) CreateSession(ctx context.Context, transcript, source string) *session.Session {
	return p.createSession(ctx, uuid.Nil, transcript, source)
}

func (p *Processor) createSession(ctx context.Context, id uuid.UUID, transcript, source string) *session.Session {
	if id == uuid.Nil {
		id = uuid.New()
	}
	sess := session.NewWithID(id, p, transcript, p.now().UTC())
	p.sessions.Put(sess)
	p.deps.Metrics.SetActiveSessions(p.sessions.Len())

	p.persist(ctx, sess, source)
	p.announce(sess)

	snap := sess.Snapshot()
	p.logger.Info("session created",
		"session_id", snap.ID,
		"source", source,
		"tasks", len(snap.Tasks),
		"fallback", snap.Fallback,
	)
	return sess
}

// Session returns a live session, reloading it from the store when this
// process has not seen it yet.
func (p *Processor) Session(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	sess, err := p.sessions.Get(id)
	if err == nil {
		return sess, nil
	}
	if p.deps.Store == nil {
		return nil, err
	}

	snap, err := p.deps.Store.LoadSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, session.ErrSessionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess = session.Restore(p, snap)
	p.sessions.Put(sess)
	p.deps.Metrics.SetActiveSessions(p.sessions.Len())
	return sess, nil
}

// CloseSession drops a session from memory. Persisted state is kept.
func (p *Processor) CloseSession(id uuid.UUID) {
	p.sessions.Delete(id)
	p.deps.Metrics.SetActiveSessions(p.sessions.Len())
	p.logger.Info("session closed", "session_id", id)
}

// UpdateTranscript applies an edited transcript. When the content hash
// changes the tasks are re-extracted, persisted and announced again.
func (p *Processor) UpdateTranscript(ctx context.Context, sess *session.Session, transcript string) bool {
	if !sess.Sync(transcript) {
		return false
	}
	p.persist(ctx, sess, "")
	p.announce(sess)
	p.logger.Info("transcript edited", "session_id", sess.ID(), "tasks", len(sess.Snapshot().Tasks))
	return true
}

func (p *Processor) SetIncluded(ctx context.Context, sess *session.Session, taskID string, included bool) error {
	if err := sess.SetIncluded(taskID, included); err != nil {
		return err
	}
	if p.deps.Store != nil {
		if err := p.deps.Store.SetTaskIncluded(ctx, sess.ID(), taskID, included); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("failed to persist task selection", "session_id", sess.ID(), "task_id", taskID, "error", err)
		}
	}
	return nil
}

// SetDueText edits a task's deadline phrase; submission parses the edited
// text. Empty text clears the deadline.
func (p *Processor) SetDueText(ctx context.Context, sess *session.Session, taskID, text string) error {
	if err := sess.SetDueText(taskID, text); err != nil {
		return err
	}
	if p.deps.Store != nil {
		var due *string
		if text != "" {
			due = &text
		}
		if err := p.deps.Store.SetTaskDueText(ctx, sess.ID(), taskID, due); err != nil && !errors.Is(err, store.ErrNotFound) {
			p.logger.Error("failed to persist due text", "session_id", sess.ID(), "task_id", taskID, "error", err)
		}
	}
	return nil
}

func (p *Processor) SetAllIncluded(ctx context.Context, sess *session.Session, included bool) {
	if included {
		sess.SelectAll()
	} else {
		sess.DeselectAll()
	}
	if p.deps.Store != nil {
		if err := p.deps.Store.SetAllIncluded(ctx, sess.ID(), included); err != nil {
			p.logger.Error("failed to persist selection", "session_id", sess.ID(), "error", err)
		}
	}
}

// Transcribe runs speech recognition and opens a session on the result.
// onSegment, if non-nil, sees every progress update; updates are also
// logged and published under the session ID the result will carry.
func (p *Processor) Transcribe(ctx context.Context, req transcription.Request, onSegment func(transcription.Progress)) (*transcription.Result, *session.Session, error) {
	if p.deps.Transcriber == nil {
		return nil, nil, ErrTranscriptionDisabled
	}
	id := uuid.New()
	start := time.Now()
	res, err := p.deps.Transcriber.Transcribe(ctx, req, p.observeProgress(id, onSegment))
	p.deps.Metrics.ObserveTranscription(time.Since(start), err)
	if err != nil {
		return nil, nil, fmt.Errorf("transcribe %s: %w", req.Filename, err)
	}
	return res, p.createSession(ctx, id, res.Transcript, "upload"), nil
}

// observeProgress wraps next so each update is logged and published.
func (p *Processor) observeProgress(id uuid.UUID, next func(transcription.Progress)) func(transcription.Progress) {
	return func(pr transcription.Progress) {
		p.logger.Debug("transcription progress",
			"session_id", id,
			"percent", pr.Percent,
			"elapsed", pr.Elapsed.Round(time.Millisecond),
		)
		if p.deps.Publisher != nil {
			err := p.deps.Publisher.Publish(hermes.SubjectTranscriptionProgress, hermes.TranscriptionProgress{
				SessionID: id.String(),
				Percent:   pr.Percent,
				ElapsedMS: pr.Elapsed.Milliseconds(),
				Text:      pr.Text,
			})
			if err != nil {
				p.logger.Warn("failed to publish progress", "session_id", id, "error", err)
			}
		}
		if next != nil {
			next(pr)
		}
	}
}

// TranscriptionEnabled reports whether a transcription service is configured.
func (p *Processor) TranscriptionEnabled() bool {
	return p.deps.Transcriber != nil
}

func (p *Processor) LexiconVersion() int {
	return p.extractor.LexiconVersion()
}

func (p *Processor) ActiveSessions() int {
	return p.sessions.Len()
}

// ErrTranscriptionDisabled is returned when no transcription service is configured.
var ErrTranscriptionDisabled = errors.New("transcription service not configured")

// HandleTranscriptReady is the NATS handler for taskscribe.transcript.ready.
func (p *Processor) HandleTranscriptReady(subject string, data []byte) {
	ctx := context.Background()

	var evt extractor.TranscriptEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse transcript event", "error", err)
		return
	}

	p.logger.Info("processing transcript",
		"session_id", evt.SessionID,
		"source", evt.Source,
		"language", evt.Language,
	)

	id := uuid.New()
	if evt.SessionID != "" {
		var err error
		if id, err = uuid.Parse(evt.SessionID); err != nil {
			p.logger.Error("invalid session id", "session_id", evt.SessionID, "error", err)
			return
		}
	}

	transcript, err := p.fetchTranscript(ctx, id, evt)
	if err != nil {
		p.logger.Error("failed to fetch transcript", "session_id", id, "error", err)
		return
	}

	if evt.SessionID != "" {
		if sess, err := p.Session(ctx, id); err == nil {
			p.UpdateTranscript(ctx, sess, transcript)
			return
		}
	}
	p.createSession(ctx, id, transcript, evt.Source)
}

// Register announces this instance on the bus.
func (p *Processor) Register(agentID string, version int, languages []string) {
	if p.deps.Publisher == nil {
		return
	}
	err := p.deps.Publisher.Publish(hermes.SubjectAgentRegistered, hermes.AgentRegistered{
		AgentID:        agentID,
		Subjects:       []string{hermes.SubjectTranscriptReady},
		LexiconVersion: version,
		Languages:      languages,
	})
	if err != nil {
		p.logger.Error("failed to publish registration", "error", err)
	}
}

func (p *Processor) fetchTranscript(ctx context.Context, id uuid.UUID, evt extractor.TranscriptEvent) (string, error) {
	// Prefer transcript embedded in the event payload.
	if evt.Transcript != "" {
		return evt.Transcript, nil
	}
	if evt.AudioURL == "" {
		return "", fmt.Errorf("no transcript or audio_url in event for session %s", evt.SessionID)
	}
	if p.deps.Transcriber == nil {
		return "", ErrTranscriptionDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, evt.AudioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build audio request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("audio request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("audio source returned %d for session %s", resp.StatusCode, evt.SessionID)
	}

	start := time.Now()
	res, err := p.deps.Transcriber.Transcribe(ctx, transcription.Request{
		Filename: path.Base(req.URL.Path),
		Audio:    resp.Body,
		Language: evt.Language,
	}, p.observeProgress(id, nil))
	p.deps.Metrics.ObserveTranscription(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return res.Transcript, nil
}

func (p *Processor) persist(ctx context.Context, sess *session.Session, source string) {
	if p.deps.Store == nil {
		return
	}
	if err := p.deps.Store.SaveSession(ctx, sess.Snapshot(), source); err != nil {
		p.logger.Error("persistence failed", "session_id", sess.ID(), "error", err)
	}
}

func (p *Processor) announce(sess *session.Session) {
	if p.deps.Publisher == nil {
		return
	}
	snap := sess.Snapshot()
	err := p.deps.Publisher.Publish(hermes.SubjectTasksExtracted, hermes.TasksExtracted{
		SessionID:   snap.ID.String(),
		ContentHash: snap.ContentHash,
		Fallback:    snap.Fallback,
		Tasks:       snap.Tasks,
	})
	if err != nil {
		p.logger.Error("failed to publish extracted tasks", "session_id", snap.ID, "error", err)
	}
}
