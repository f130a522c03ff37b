package extractor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Splitter breaks a sentence into clauses on coordinating connectives
// ("и", "затем", "and then", ...). Connectives are dropped.
type Splitter struct {
	connectives *phraseSet
}

func NewSplitter(connectives []string) *Splitter {
	return &Splitter{connectives: newPhraseSet(connectives)}
}

// Split returns the clauses of sentence. It never returns an empty slice:
// when no clause survives, the sentence itself is the only clause.
func (s *Splitter) Split(sentence string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(sentence); {
		if end := s.connectives.matchAt(sentence, i); end > i {
			pieces = append(pieces, sentence[start:i])
			start, i = end, end
			continue
		}
		_, size := utf8.DecodeRuneInString(sentence[i:])
		i += size
	}
	pieces = append(pieces, sentence[start:])

	var out []string
	for _, p := range pieces {
		p = strings.TrimFunc(p, isClauseTrim)
		if p == "" || s.connectives.isPhrase(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{sentence}
	}
	return out
}

func isClauseTrim(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(",.;:—–-", r)
}
