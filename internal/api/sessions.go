package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/taskscribe/internal/extractor"
	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
	"github.com/MikeSquared-Agency/taskscribe/internal/processor"
	"github.com/MikeSquared-Agency/taskscribe/internal/session"
	"github.com/MikeSquared-Agency/taskscribe/internal/transcription"
)

const (
	maxUploadMemory = 32 << 20
	ndjsonType      = "application/x-ndjson"
)

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// taskUpdateRequest carries the editable fields of one task. Omitted
// fields are left alone; an empty due_text clears the deadline.
type taskUpdateRequest struct {
	Included *bool   `json:"included"`
	DueText  *string `json:"due_text"`
}

type taskView struct {
	extractor.Task
	Included bool `json:"included"`
}

type sessionView struct {
	ID          string     `json:"id"`
	ContentHash string     `json:"content_hash"`
	Transcript  string     `json:"transcript"`
	Fallback    bool       `json:"fallback"`
	Tasks       []taskView `json:"tasks"`
	Selected    int        `json:"selected"`

	Changed          *bool    `json:"changed,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	EngineLanguage   string   `json:"engine_language,omitempty"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
}

type progressLine struct {
	Type      string `json:"type"`
	Percent   int    `json:"percent"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Text      string `json:"text"`
}

type sessionLine struct {
	Type    string      `json:"type"`
	Session sessionView `json:"session"`
}

type errorLine struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func viewOf(sess *session.Session) sessionView {
	snap := sess.Snapshot()
	v := sessionView{
		ID:          snap.ID.String(),
		ContentHash: snap.ContentHash,
		Transcript:  snap.Transcript,
		Fallback:    snap.Fallback,
		Tasks:       make([]taskView, 0, len(snap.Tasks)),
	}
	for _, t := range snap.Tasks {
		inc := snap.Included[t.ID]
		if inc {
			v.Selected++
		}
		v.Tasks = append(v.Tasks, taskView{Task: t, Included: inc})
	}
	return v
}

// transcribedView reports the engine's language alongside the one detected
// from the final transcript; the two can disagree.
func transcribedView(sess *session.Session, res *transcription.Result) sessionView {
	v := viewOf(sess)
	v.Duration = &res.Duration
	v.EngineLanguage = res.Language
	v.DetectedLanguage = transcription.DetectLanguage(res.Transcript)
	return v
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.proc.Extract(req.Transcript))
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess := s.proc.CreateSession(r.Context(), req.Transcript, "api")
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if !s.proc.TranscriptionEnabled() {
		writeError(w, http.StatusServiceUnavailable, processor.ErrTranscriptionDisabled)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	if !transcription.SupportedFile(header.Filename) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported file type %q", header.Filename))
		return
	}
	language := r.FormValue("language")
	if !transcription.ValidLanguage(language) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported language %q", language))
		return
	}

	req := transcription.Request{
		Filename: header.Filename,
		Audio:    file,
		Language: language,
	}
	if strings.Contains(r.Header.Get("Accept"), ndjsonType) {
		s.streamTranscription(w, r, req)
		return
	}

	res, sess, err := s.proc.Transcribe(r.Context(), req, nil)
	if err != nil {
		s.logger.Error("transcription failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, transcribedView(sess, res))
}

// streamTranscription writes one NDJSON progress line per recognized
// segment, then a final session or error line.
func (s *Server) streamTranscription(w http.ResponseWriter, r *http.Request, req transcription.Request) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", ndjsonType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(v any) {
		if err := enc.Encode(v); err != nil {
			s.logger.Debug("progress stream write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, sess, err := s.proc.Transcribe(r.Context(), req, func(pr transcription.Progress) {
		emit(progressLine{
			Type:      "progress",
			Percent:   pr.Percent,
			ElapsedMS: pr.Elapsed.Milliseconds(),
			Text:      pr.Text,
		})
	})
	if err != nil {
		s.logger.Error("transcription failed", "file", req.Filename, "error", err)
		emit(errorLine{Type: "error", Error: err.Error()})
		return
	}
	emit(sessionLine{Type: "session", Session: transcribedView(sess, res)})
}

// lookup resolves the {id} path parameter, writing the error response
// itself when it fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid session id: %w", err))
		return nil, false
	}
	sess, err := s.proc.Session(r.Context(), id)
	if errors.Is(err, session.ErrSessionMissing) {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.proc.CloseSession(sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	rows, err := s.proc.Submissions(r.Context(), sess.ID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": rows})
}

func (s *Server) updateTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	changed := s.proc.UpdateTranscript(r.Context(), sess, req.Transcript)
	v := viewOf(sess)
	v.Changed = &changed
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req taskUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Included == nil && req.DueText == nil {
		writeError(w, http.StatusBadRequest, errors.New("included or due_text is required"))
		return
	}

	taskID := chi.URLParam(r, "taskID")
	var err error
	if req.DueText != nil {
		err = s.proc.SetDueText(r.Context(), sess, taskID, *req.DueText)
	}
	if err == nil && req.Included != nil {
		err = s.proc.SetIncluded(r.Context(), sess, taskID, *req.Included)
	}
	if errors.Is(err, session.ErrUnknownTask) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) selectAll(w http.ResponseWriter, r *http.Request) {
	s.setAll(w, r, true)
}

func (s *Server) deselectAll(w http.ResponseWriter, r *http.Request) {
	s.setAll(w, r, false)
}

func (s *Server) setAll(w http.ResponseWriter, r *http.Request, included bool) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.proc.SetAllIncluded(r.Context(), sess, included)
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req jira.Credentials
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	report, err := s.proc.Submit(r.Context(), sess, s.credentials(req))
	var verr *jira.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, jira.ErrNoTasksSelected):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// credentials fills the fields req leaves empty from the configured defaults.
func (s *Server) credentials(req jira.Credentials) jira.Credentials {
	d := s.opts.JiraDefaults
	return jira.Credentials{
		BaseURL:    firstNonEmpty(req.BaseURL, d.BaseURL),
		Email:      firstNonEmpty(req.Email, d.Email),
		APIToken:   firstNonEmpty(req.APIToken, d.APIToken),
		ProjectKey: firstNonEmpty(req.ProjectKey, d.ProjectKey),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
