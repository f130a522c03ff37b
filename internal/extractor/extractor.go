package extractor

import (
	"log/slog"

	"github.com/MikeSquared-Agency/taskscribe/internal/lexicon"
)

// Extractor runs the transcript-to-task pipeline. It holds only compiled,
// read-only matchers and is safe for concurrent use.
type Extractor struct {
	filter     *ActionFilter
	splitter   *Splitter
	normalizer *Normalizer
	version    int
	logger     *slog.Logger
}

func New(lex *lexicon.Lexicon, logger *slog.Logger) *Extractor {
	verbs := lex.Verbs()
	return &Extractor{
		filter:     NewActionFilter(verbs),
		splitter:   NewSplitter(lex.Connectives()),
		normalizer: NewNormalizer(lex.Fillers(), verbs),
		version:    lex.Version,
		logger:     logger,
	}
}

// LexiconVersion reports the version of the word lists in use.
func (e *Extractor) LexiconVersion() int {
	return e.version
}

// Fragments returns the deduplicated, normalized action fragments of text
// in the order they first appear.
func (e *Extractor) Fragments(text string) []string {
	var out []string
	for _, sentence := range SplitSentences(text) {
		if !e.filter.Match(sentence) {
			continue
		}
		for _, clause := range e.splitter.Split(sentence) {
			if frag, ok := e.normalizer.Normalize(clause); ok {
				out = append(out, frag)
			}
		}
	}
	return Dedupe(out)
}

// Extract turns a transcript into tasks. It never fails: text without any
// action item yields the single review task, empty text yields none.
func (e *Extractor) Extract(text string) Result {
	frags := e.Fragments(text)
	tasks := BuildTasks(frags, text)

	e.logger.Debug("extraction complete",
		"transcript_len", len(text),
		"fragments", len(frags),
		"tasks", len(tasks),
	)

	return Result{
		ContentHash: ContentHash(text),
		Tasks:       tasks,
		Fallback:    len(frags) == 0 && len(tasks) == 1,
	}
}
