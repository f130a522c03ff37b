// Package transcription talks to a Whisper-compatible speech recognition
// service and streams timed segments back to the caller.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel          = "small"
	defaultTimeout        = 30 * time.Minute
	defaultResponseFormat = "verbose_json"
	minSilenceMS          = "500"
)

// Config contains transcription client configuration.
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	Timeout        time.Duration
	ResponseFormat string
}

// Request is one audio file to transcribe.
type Request struct {
	Filename string
	Audio    io.Reader
	Language string // one of Languages; empty means AutoLanguage
}

// Segment is a timed piece of recognized text. Times are in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Progress is reported once per received segment.
type Progress struct {
	Segment Segment
	Percent int
	Elapsed time.Duration
	Text    string // transcript so far
}

// Result is a finished transcription.
type Result struct {
	Transcript string    `json:"transcript"`
	Language   string    `json:"language"`
	Duration   float64   `json:"duration"`
	Segments   []Segment `json:"segments"`
}

type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("transcription endpoint cannot be empty")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = defaultResponseFormat
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Transcribe uploads the audio and consumes segments as the service
// produces them, calling onSegment (if non-nil) after each one. Any
// failure discards what was received so far.
func (c *Client) Transcribe(ctx context.Context, req Request, onSegment func(Progress)) (*Result, error) {
	if !ValidLanguage(req.Language) {
		return nil, fmt.Errorf("unsupported language %q", req.Language)
	}

	body, contentType, err := c.createMultipartRequest(req)
	if err != nil {
		return nil, fmt.Errorf("create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/x-ndjson, application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	t := &tracker{start: start, onSegment: onSegment}
	if strings.Contains(resp.Header.Get("Content-Type"), "ndjson") {
		err = t.readStream(resp.Body)
	} else {
		err = t.readVerbose(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	res := t.result()
	c.logger.Info("transcription complete",
		"filename", req.Filename,
		"duration", res.Duration,
		"segments", len(res.Segments),
		"language", res.Language,
		"elapsed", time.Since(start).String(),
	)
	return res, nil
}

func (c *Client) createMultipartRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "audio"
	}
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if req.Audio != nil {
		if _, err := io.Copy(fileWriter, req.Audio); err != nil {
			return nil, "", fmt.Errorf("write audio data: %w", err)
		}
	}

	fields := [][2]string{
		{"model", c.config.Model},
		{"vad_filter", "true"},
		{"min_silence_duration_ms", minSilenceMS},
		{"response_format", c.config.ResponseFormat},
	}
	if req.Language != "" && req.Language != AutoLanguage {
		fields = append(fields, [2]string{"language", req.Language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// tracker accumulates segments and derives monotonic progress.
type tracker struct {
	start     time.Time
	onSegment func(Progress)

	duration float64
	language string
	segments []Segment
	text     strings.Builder
	percent  int
}

func (t *tracker) add(seg Segment) {
	t.segments = append(t.segments, seg)
	t.text.WriteString(seg.Text)

	p := int(100 * seg.End / max(1, t.duration))
	p = min(100, p)
	if p > t.percent {
		t.percent = p
	}
	if t.onSegment != nil {
		t.onSegment(Progress{
			Segment: seg,
			Percent: t.percent,
			Elapsed: time.Since(t.start),
			Text:    t.text.String(),
		})
	}
}

func (t *tracker) result() *Result {
	segments := t.segments
	if segments == nil {
		segments = []Segment{}
	}
	return &Result{
		Transcript: strings.TrimSpace(t.text.String()),
		Language:   t.language,
		Duration:   t.duration,
		Segments:   segments,
	}
}

// streamLine is one line of an NDJSON response: an "info" header followed
// by "segment" lines.
type streamLine struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Text     string  `json:"text"`
	Error    string  `json:"error"`
}

func (t *tracker) readStream(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var line streamLine
		err := dec.Decode(&line)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode transcription stream: %w", err)
		}

		switch line.Type {
		case "info":
			t.duration = line.Duration
			t.language = line.Language
		case "segment":
			t.add(Segment{Start: line.Start, End: line.End, Text: line.Text})
		case "error":
			return fmt.Errorf("transcription stream error: %s", line.Error)
		}
	}
}

type verboseResponse struct {
	Duration float64   `json:"duration"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func (t *tracker) readVerbose(r io.Reader) error {
	var resp verboseResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return fmt.Errorf("parse transcription response: %w", err)
	}
	t.duration = resp.Duration
	t.language = resp.Language
	for _, seg := range resp.Segments {
		t.add(seg)
	}
	return nil
}
