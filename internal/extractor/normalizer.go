package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFragmentWords caps the number of words kept after the verb anchor.
	MaxFragmentWords = 16
	minFragmentRunes = 3
)

// ActionFilter reports whether a sentence mentions any action verb.
// Matching is by substring so inflected stems still hit.
type ActionFilter struct {
	verbs *substringMatcher
}

func NewActionFilter(verbs []string) *ActionFilter {
	return &ActionFilter{verbs: newSubstringMatcher(verbs)}
}

// Match reports whether sentence contains an action-verb token.
func (f *ActionFilter) Match(sentence string) bool {
	return f.verbs.index(sentence) >= 0
}

// Normalizer turns a clause into a verb-anchored fragment.
type Normalizer struct {
	fillers *phraseSet
	verbs   *substringMatcher
}

func NewNormalizer(fillers, verbs []string) *Normalizer {
	return &Normalizer{
		fillers: newPhraseSet(fillers),
		verbs:   newSubstringMatcher(verbs),
	}
}

// Normalize strips a leading filler, anchors at the first action verb,
// cuts at terminal punctuation and caps the word count. It returns false
// when nothing usable remains.
func (n *Normalizer) Normalize(clause string) (string, bool) {
	s := n.stripFiller(strings.TrimSpace(clause))

	if i := n.verbs.index(s); i >= 0 {
		s = s[i:]
	}
	if i := strings.IndexAny(s, ".;!?"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimFunc(s, isFragmentTrim)

	if words := strings.Fields(s); len(words) > MaxFragmentWords {
		s = strings.Join(words[:MaxFragmentWords], " ")
	}
	if utf8.RuneCountInString(s) < minFragmentRunes {
		return "", false
	}
	return s, true
}

// stripFiller removes one leading filler phrase and the whitespace after it.
// A filler with nothing after it is kept.
func (n *Normalizer) stripFiller(s string) string {
	end := n.fillers.matchAt(s, 0)
	if end <= 0 || end >= len(s) {
		return s
	}
	if r, _ := utf8.DecodeRuneInString(s[end:]); !unicode.IsSpace(r) {
		return s
	}
	return strings.TrimLeftFunc(s[end:], unicode.IsSpace)
}

func isFragmentTrim(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(",.:—–-", r)
}

// Dedupe drops exact repeats, keeping the first occurrence of each fragment.
func Dedupe(fragments []string) []string {
	seen := make(map[string]bool, len(fragments))
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
