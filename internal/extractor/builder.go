package extractor

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
)

const (
	idWidth                = 10
	maxSummaryRunes        = 120
	maxFallbackDescription = 2000
	fallbackHashRunes      = 64

	// FallbackSummary is the summary of the review task emitted when no
	// action item could be found.
	FallbackSummary = "Review transcript & create tasks"
)

var emailPattern = regexp.MustCompile(`[\p{L}\p{N}_.\-]+@[\p{L}\p{N}_.\-]+\.[\p{L}\p{N}_]+`)

// ContentHash fingerprints transcript text. Sessions use it to notice edits.
func ContentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func taskID(text string) string {
	return ContentHash(text)[:idWidth]
}

// BuildTasks wraps fragments into tasks. With no fragments and a non-empty
// transcript it returns a single review task instead.
func BuildTasks(fragments []string, transcript string) []Task {
	tasks := make([]Task, 0, len(fragments))
	for _, frag := range fragments {
		tasks = append(tasks, Task{
			ID:            taskID(frag),
			Summary:       truncateRunes(frag, maxSummaryRunes),
			Description:   frag,
			AssigneeEmail: findEmail(frag),
		})
	}
	if len(tasks) == 0 && transcript != "" {
		tasks = append(tasks, fallbackTask(transcript))
	}
	return tasks
}

func fallbackTask(transcript string) Task {
	return Task{
		ID:          taskID(truncateRunes(transcript, fallbackHashRunes)),
		Summary:     FallbackSummary,
		Description: truncateRunes(transcript, maxFallbackDescription),
	}
}

func findEmail(s string) *string {
	m := emailPattern.FindString(s)
	if m == "" {
		return nil
	}
	return &m
}
