package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RE2's \b only understands ASCII word characters, which makes it useless
// for Cyrillic. Phrase boundaries are therefore checked by hand around
// anchored per-phrase patterns.

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// phrasePattern turns a lexicon phrase into a case-insensitive pattern
// where inner spaces match any whitespace run.
func phrasePattern(phrase string) string {
	parts := strings.Fields(phrase)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

type phrase struct {
	re         *regexp.Regexp
	wordStart  bool // first rune is a word rune, so a boundary is required before it
	wordEnd    bool // last rune is a word rune, so a boundary is required after it
	runeLength int
}

// phraseSet matches whole-word phrases at a given position. Longer phrases
// are tried first so "and then" wins over "and".
type phraseSet struct {
	phrases []phrase
}

func newPhraseSet(words []string) *phraseSet {
	set := &phraseSet{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(w)
		last, _ := utf8.DecodeLastRuneInString(w)
		set.phrases = append(set.phrases, phrase{
			re:         regexp.MustCompile(`^(?i:` + phrasePattern(w) + `)`),
			wordStart:  isWordRune(first),
			wordEnd:    isWordRune(last),
			runeLength: utf8.RuneCountInString(w),
		})
	}
	sort.SliceStable(set.phrases, func(i, j int) bool {
		return set.phrases[i].runeLength > set.phrases[j].runeLength
	})
	return set
}

// matchAt returns the byte offset just past a whole-word phrase starting at
// byte offset i of s, or -1.
func (p *phraseSet) matchAt(s string, i int) int {
	before := boundaryBefore(s, i)
	for _, ph := range p.phrases {
		if ph.wordStart && !before {
			continue
		}
		loc := ph.re.FindStringIndex(s[i:])
		if loc == nil {
			continue
		}
		end := i + loc[1]
		if ph.wordEnd && !boundaryAfter(s, end) {
			continue
		}
		return end
	}
	return -1
}

// isPhrase reports whether s consists of exactly one phrase.
func (p *phraseSet) isPhrase(s string) bool {
	return s != "" && p.matchAt(s, 0) == len(s)
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

// substringMatcher finds the first case-insensitive occurrence of any token,
// deliberately without word boundaries so inflected forms still match.
type substringMatcher struct {
	re *regexp.Regexp
}

func newSubstringMatcher(words []string) *substringMatcher {
	var alts []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, phrasePattern(w))
		}
	}
	if len(alts) == 0 {
		return &substringMatcher{}
	}
	return &substringMatcher{re: regexp.MustCompile(`(?i:` + strings.Join(alts, "|") + `)`)}
}

// index returns the byte offset of the first match in s, or -1.
func (m *substringMatcher) index(s string) int {
	if m.re == nil {
		return -1
	}
	loc := m.re.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
