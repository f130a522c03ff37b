// Package session keeps the editable view of one transcript: the tasks
// extracted from it and which of them the user wants to submit.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
)

var (
	ErrUnknownTask    = errors.New("unknown task")
	ErrSessionMissing = errors.New("session not found")
)

// Extractor turns transcript text into tasks.
type Extractor interface {
	Extract(text string) extractor.Result
}

// Session is safe for concurrent use. Its task list and inclusion flags are
// tied to the content hash of the transcript they came from; a different
// hash replaces both.
type Session struct {
	mu sync.RWMutex

	id          uuid.UUID
	extractor   Extractor
	transcript  string
	contentHash string
	fallback    bool
	refTime     time.Time
	tasks       []extractor.Task
	included    map[string]bool
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID          uuid.UUID        `json:"id"`
	ContentHash string           `json:"content_hash"`
	Transcript  string           `json:"transcript"`
	Fallback    bool             `json:"fallback"`
	RefTime     time.Time        `json:"ref_time"`
	Tasks       []extractor.Task `json:"tasks"`
	Included    map[string]bool  `json:"included"`
}

// New starts a session for transcript. ref anchors relative due dates when
// the tasks are submitted.
func New(ex Extractor, transcript string, ref time.Time) *Session {
	return NewWithID(uuid.New(), ex, transcript, ref)
}

// NewWithID is New for a caller-assigned session ID.
func NewWithID(id uuid.UUID, ex Extractor, transcript string, ref time.Time) *Session {
	s := &Session{
		id:        id,
		extractor: ex,
		refTime:   ref,
	}
	s.replace(transcript, ex.Extract(transcript))
	return s
}

// Restore rebuilds a session from a snapshot without re-extracting.
func Restore(ex Extractor, snap Snapshot) *Session {
	s := &Session{
		id:          snap.ID,
		extractor:   ex,
		transcript:  snap.Transcript,
		contentHash: snap.ContentHash,
		fallback:    snap.Fallback,
		refTime:     snap.RefTime,
		tasks:       append([]extractor.Task{}, snap.Tasks...),
		included:    make(map[string]bool, len(snap.Tasks)),
	}
	for _, t := range snap.Tasks {
		inc, ok := snap.Included[t.ID]
		s.included[t.ID] = !ok || inc
	}
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Sync re-extracts when transcript differs from the current one by content
// hash and reports whether anything changed. Unchanged text keeps the
// user's selections.
func (s *Session) Sync(transcript string) bool {
	hash := extractor.ContentHash(transcript)

	s.mu.RLock()
	same := hash == s.contentHash
	s.mu.RUnlock()
	if same {
		return false
	}

	res := s.extractor.Extract(transcript)

	s.mu.Lock()
	defer s.mu.Unlock()
	if res.ContentHash == s.contentHash {
		return false
	}
	s.replace(transcript, res)
	return true
}

// replace must be called with mu held or before s is shared.
func (s *Session) replace(transcript string, res extractor.Result) {
	s.transcript = transcript
	s.contentHash = res.ContentHash
	s.fallback = res.Fallback
	s.tasks = res.Tasks
	s.included = make(map[string]bool, len(res.Tasks))
	for _, t := range res.Tasks {
		s.included[t.ID] = true
	}
}

func (s *Session) SetIncluded(taskID string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.included[taskID]; !ok {
		return ErrUnknownTask
	}
	s.included[taskID] = included
	return nil
}

// SetDueText replaces a task's deadline phrase. Empty text clears it.
// The edit lasts until the transcript changes.
func (s *Session) SetDueText(taskID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != taskID {
			continue
		}
		if text == "" {
			s.tasks[i].DueText = nil
		} else {
			s.tasks[i].DueText = &text
		}
		return nil
	}
	return ErrUnknownTask
}

func (s *Session) SelectAll() {
	s.setAll(true)
}

func (s *Session) DeselectAll() {
	s.setAll(false)
}

func (s *Session) setAll(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.included {
		s.included[id] = v
	}
}

// Selected returns the included tasks in extraction order.
func (s *Session) Selected() []extractor.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]extractor.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if s.included[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) RefTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refTime
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	included := make(map[string]bool, len(s.included))
	for k, v := range s.included {
		included[k] = v
	}
	return Snapshot{
		ID:          s.id,
		ContentHash: s.contentHash,
		Transcript:  s.transcript,
		Fallback:    s.fallback,
		RefTime:     s.refTime,
		Tasks:       append([]extractor.Task{}, s.tasks...),
		Included:    included,
	}
}
