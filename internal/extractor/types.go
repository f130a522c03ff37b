package extractor

// TranscriptEvent is the NATS event payload announcing a finished transcript.
type TranscriptEvent struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	Language   string `json:"language,omitempty"`
	Source     string `json:"source,omitempty"` // e.g. "upload", "batch", "recorder"

	// AudioURL is fetched and transcribed when Transcript is empty.
	AudioURL string `json:"audio_url,omitempty"`
}

// Task is one actionable item extracted from a transcript.
type Task struct {
	ID            string  `json:"id"`
	Summary       string  `json:"summary"`
	Description   string  `json:"description"`
	AssigneeEmail *string `json:"assignee_email"`
	DueText       *string `json:"due_text"` // never set by extraction itself
}

// Result holds the outcome of a single extraction run.
type Result struct {
	ContentHash string `json:"content_hash"`
	Tasks       []Task `json:"tasks"`
	Fallback    bool   `json:"fallback"` // true when Tasks is the single review task
}
