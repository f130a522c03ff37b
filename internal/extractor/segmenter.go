package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceBreak matches the separators between spoken sentences: whitespace
// after terminal punctuation, line breaks, bullets and a spoken " - " dash.
var sentenceBreak = regexp.MustCompile(`[.!?][\s\p{Z}]+|[\n\r]+|•[\s\p{Z}]*| - `)

const minSentenceRunes = 3

// SplitSentences breaks transcript text into candidate sentences in order.
// Terminal punctuation stays attached to the sentence it ends.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		end := loc[0]
		if strings.ContainsRune(".!?", rune(text[loc[0]])) {
			end++
		}
		out = appendSentence(out, text[start:end])
		start = loc[1]
	}
	return appendSentence(out, text[start:])
}

func appendSentence(out []string, s string) []string {
	s = strings.TrimFunc(s, isSentenceTrim)
	if utf8.RuneCountInString(s) < minSentenceRunes {
		return out
	}
	return append(out, s)
}

func isSentenceTrim(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("-—–•", r)
}
