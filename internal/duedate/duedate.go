// Package duedate resolves free-text due expressions ("завтра", "next friday",
// "2024-03-15") into calendar dates relative to a reference time.
package duedate

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// Parser resolves due text. The zero value is ready to use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// relative day offsets, longest key first so "послезавтра" is not read as "завтра".
var dayOffsets = []struct {
	word   string
	offset int
}{
	{"day after tomorrow", 2},
	{"послезавтра", 2},
	{"tomorrow", 1},
	{"сегодня", 0},
	{"завтра", 1},
	{"today", 0},
}

// Inflected endings a weekday stem may take. Matching is per whole word so
// "средства" or "среди" never read as Wednesday.
var (
	mascEndings = []string{"", "а", "у", "ом", "е", "и", "ам", "ах"}
	femEndings  = []string{"а", "у", "ы", "е", "ой", "ей", "ам", "ах"}
	neutEndings = []string{"е", "я", "ю", "ем", "ям", "ях"}
	enEndings   = []string{"", "s"}
)

var weekdays = []struct {
	stem    string
	endings []string
	day     time.Weekday
}{
	{"понедельник", mascEndings, time.Monday},
	{"вторник", mascEndings, time.Tuesday},
	{"сред", femEndings, time.Wednesday},
	{"четверг", mascEndings, time.Thursday},
	{"пятниц", femEndings, time.Friday},
	{"суббот", femEndings, time.Saturday},
	{"воскресень", neutEndings, time.Sunday},
	{"monday", enEndings, time.Monday},
	{"tuesday", enEndings, time.Tuesday},
	{"wednesday", enEndings, time.Wednesday},
	{"thursday", enEndings, time.Thursday},
	{"friday", enEndings, time.Friday},
	{"saturday", enEndings, time.Saturday},
	{"sunday", enEndings, time.Sunday},
}

var (
	inNPattern    = regexp.MustCompile(`(?:через|in)\s+(\d+)\s+([\p{L}]+)`)
	dottedPattern = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?\b`)
	isoPattern    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// Parse returns the date text refers to, at midnight in ref's location.
func (p *Parser) Parse(text string, ref time.Time) (time.Time, bool) {
	raw := strings.Join(strings.Fields(text), " ")
	s := strings.ToLower(raw)
	if s == "" {
		return time.Time{}, false
	}
	day := midnight(ref)

	for _, d := range dayOffsets {
		if strings.Contains(s, d.word) {
			return day.AddDate(0, 0, d.offset), true
		}
	}

	if m := inNPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if days, ok := unitDays(m[2]); ok {
				return day.AddDate(0, 0, n*days), true
			}
		}
	}
	if strings.Contains(s, "через неделю") || strings.Contains(s, "in a week") {
		return day.AddDate(0, 0, 7), true
	}
	if strings.Contains(s, "next week") || strings.Contains(s, "следующей неделе") || strings.Contains(s, "следующую неделю") {
		return nextWeekday(day, time.Monday), true
	}

	if wd, ok := firstWeekday(s); ok {
		return nextWeekday(day, wd), true
	}

	if t, ok := parseDotted(s, day); ok {
		return t, true
	}
	if m := isoPattern.FindString(raw); m != "" {
		raw = m
	}
	t, err := dateparse.ParseIn(raw, ref.Location())
	if err != nil {
		return time.Time{}, false
	}
	return midnight(t), true
}

// FormatISO renders t as YYYY-MM-DD, the issue tracker's due date format.
func FormatISO(t time.Time) string {
	return t.Format("2006-01-02")
}

func unitDays(unit string) (int, bool) {
	switch {
	case strings.HasPrefix(unit, "дн"), strings.HasPrefix(unit, "день"), strings.HasPrefix(unit, "day"):
		return 1, true
	case strings.HasPrefix(unit, "недел"), strings.HasPrefix(unit, "week"):
		return 7, true
	}
	return 0, false
}

// firstWeekday returns the weekday named by the earliest word of s that is
// a weekday name.
func firstWeekday(s string) (time.Weekday, bool) {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, word := range words {
		for _, w := range weekdays {
			rest, ok := strings.CutPrefix(word, w.stem)
			if ok && slices.Contains(w.endings, rest) {
				return w.day, true
			}
		}
	}
	return time.Sunday, false
}

// nextWeekday returns the first wd strictly after day.
func nextWeekday(day time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(day.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return day.AddDate(0, 0, delta)
}

// parseDotted reads day-first dates (15.03, 15.03.2024). A missing year
// means the next such date on or after day.
func parseDotted(s string, day time.Time) (time.Time, bool) {
	m := dottedPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	d, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	if d < 1 || d > 31 || mon < 1 || mon > 12 {
		return time.Time{}, false
	}

	year := day.Year()
	explicit := m[3] != ""
	if explicit {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	t := time.Date(year, time.Month(mon), d, 0, 0, 0, 0, day.Location())
	if t.Day() != d {
		return time.Time{}, false
	}
	if !explicit && t.Before(day) {
		t = t.AddDate(1, 0, 0)
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
