package extractor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n\t ", nil},
		{
			"terminal punctuation",
			"Первое предложение. Второе! Третье? Четвёртое",
			[]string{"Первое предложение.", "Второе!", "Третье?", "Четвёртое"},
		},
		{
			"line breaks",
			"line one\nline two\r\nline three",
			[]string{"line one", "line two", "line three"},
		},
		{
			"bullets",
			"• buy milk • fix bug",
			[]string{"buy milk", "fix bug"},
		},
		{
			"spoken dash",
			"prepare slides - send invites",
			[]string{"prepare slides", "send invites"},
		},
		{
			"punctuation without whitespace does not split",
			"version 1.5 is live",
			[]string{"version 1.5 is live"},
		},
		{
			"short pieces dropped",
			"a. b. ok",
			nil,
		},
		{
			"dashes and bullets trimmed",
			"— проверить логи —\n•",
			[]string{"проверить логи"},
		},
		{
			"period before newline and bullet",
			"Потом созвониться с командой.\n• Проверить деплой",
			[]string{"Потом созвониться с командой.", "Проверить деплой"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitSentences(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestSplitSentences_NeverReturnsShortSentences(t *testing.T) {
	inputs := []string{
		"a. b. c.",
		"-- - -- • •",
		"ok!\n\n?!\n...",
		"Я. Ты. Мы. Они пошли домой.",
		strings.Repeat("x. ", 50),
		" - - - ",
	}
	for _, in := range inputs {
		for _, s := range SplitSentences(in) {
			if n := utf8.RuneCountInString(strings.TrimSpace(s)); n <= 2 {
				t.Errorf("SplitSentences(%q) returned %q with %d runes", in, s, n)
			}
		}
	}
}
