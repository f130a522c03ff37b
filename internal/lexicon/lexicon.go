// Package lexicon holds the versioned word lists that drive transcript
// extraction: action verbs, clause connectives and discourse fillers, one
// set per supported language.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Lexicon is an ordered collection of per-language word lists.
type Lexicon struct {
	Version   int        `yaml:"version"`
	Languages []Language `yaml:"languages"`
}

// Language is the word list set for one language code.
type Language struct {
	Code        string   `yaml:"code"`
	Verbs       []string `yaml:"verbs"`
	Connectives []string `yaml:"connectives"`
	Fillers     []string `yaml:"fillers"`
}

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	lex, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded lexicon: %w", err)
	}
	return lex, nil
}

// Load reads a lexicon from a YAML file. An empty path yields the default.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes and validates a YAML lexicon document.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// Validate checks the lexicon is usable by the extractor.
func (l *Lexicon) Validate() error {
	if l.Version <= 0 {
		return fmt.Errorf("lexicon version must be positive, got %d", l.Version)
	}
	if len(l.Languages) == 0 {
		return fmt.Errorf("lexicon has no languages")
	}
	seen := make(map[string]bool, len(l.Languages))
	for i, lang := range l.Languages {
		if lang.Code == "" {
			return fmt.Errorf("language %d: missing code", i)
		}
		if seen[lang.Code] {
			return fmt.Errorf("language %s: duplicate code", lang.Code)
		}
		seen[lang.Code] = true
		if len(clean(lang.Verbs)) == 0 {
			return fmt.Errorf("language %s: no verbs", lang.Code)
		}
	}
	return nil
}

// Codes lists the language codes in declaration order.
func (l *Lexicon) Codes() []string {
	codes := make([]string, 0, len(l.Languages))
	for _, lang := range l.Languages {
		codes = append(codes, lang.Code)
	}
	return codes
}

// Verbs returns every action verb across languages, deduplicated
// case-insensitively, in declaration order.
func (l *Lexicon) Verbs() []string {
	return l.merge(func(lang Language) []string { return lang.Verbs })
}

// Connectives returns every clause connective across languages.
func (l *Lexicon) Connectives() []string {
	return l.merge(func(lang Language) []string { return lang.Connectives })
}

// Fillers returns every discourse filler phrase across languages.
func (l *Lexicon) Fillers() []string {
	return l.merge(func(lang Language) []string { return lang.Fillers })
}

func (l *Lexicon) merge(pick func(Language) []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, lang := range l.Languages {
		for _, w := range clean(pick(lang)) {
			key := strings.ToLower(w)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, w)
		}
	}
	return out
}

// clean trims entries and drops empty ones.
func clean(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Join(strings.Fields(w), " ")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
