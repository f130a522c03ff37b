package extractor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/taskscribe/internal/lexicon"
)

func defaultLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("load default lexicon: %v", err)
	}
	return lex
}

func TestSplitter_Split(t *testing.T) {
	sp := NewSplitter(defaultLexicon(t).Connectives())

	tests := []struct {
		name     string
		sentence string
		want     []string
	}{
		{
			"russian and",
			"подготовить отчёт и отправить его",
			[]string{"подготовить отчёт", "отправить его"},
		},
		{
			"longest connective wins",
			"Prepare slides and then send invites",
			[]string{"Prepare slides", "send invites"},
		},
		{
			"connective inside a word is ignored",
			"Check the android build",
			[]string{"Check the android build"},
		},
		{
			"cyrillic connective inside a word is ignored",
			"Написать клиенту письмо",
			[]string{"Написать клиенту письмо"},
		},
		{
			"multi-word connective",
			"Собрать данные, а также проверить отчёт",
			[]string{"Собрать данные", "проверить отчёт"},
		},
		{
			"case insensitive",
			"Fix login AND deploy",
			[]string{"Fix login", "deploy"},
		},
		{
			"leading connective and dash",
			"Затем — обновить документацию",
			[]string{"обновить документацию"},
		},
		{
			"several connectives in one pass",
			"Исправить баг, потом обновить docs, после этого закрыть задачу",
			[]string{"Исправить баг", "обновить docs", "закрыть задачу"},
		},
		{
			"only a connective falls back to the sentence",
			"и",
			[]string{"и"},
		},
		{
			"only punctuation falls back to the sentence",
			", ; :",
			[]string{", ; :"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sp.Split(tt.sentence)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.sentence, diff)
			}
		})
	}
}

func TestSplitter_ClausesNeverEdgeOnConnective(t *testing.T) {
	lex := defaultLexicon(t)
	sp := NewSplitter(lex.Connectives())

	connectives := make(map[string]bool)
	for _, c := range lex.Connectives() {
		for _, w := range strings.Fields(c) {
			connectives[strings.ToLower(w)] = true
		}
	}

	sentences := []string{
		"Надо и подготовить отчёт и затем отправить его и",
		"Prepare slides and then send invites and review",
		"Потом позвонить, далее написать, а также проверить",
		"and and and then",
	}
	for _, s := range sentences {
		clauses := sp.Split(s)
		if len(clauses) == 0 {
			t.Fatalf("Split(%q) returned no clauses", s)
		}
		for _, c := range clauses {
			words := strings.Fields(strings.ToLower(c))
			if len(words) == 0 {
				t.Errorf("Split(%q) returned empty clause", s)
				continue
			}
			if len(clauses) > 1 && (connectives[words[0]] || connectives[words[len(words)-1]]) {
				t.Errorf("Split(%q) clause %q starts or ends with a connective", s, c)
			}
		}
	}
}
