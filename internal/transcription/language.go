package transcription

import (
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// AutoLanguage lets the engine detect the spoken language itself.
const AutoLanguage = "auto"

// Languages are the hints the engine accepts, AutoLanguage first.
var Languages = []string{AutoLanguage, "ru", "kk", "en", "tr"}

// Formats are the audio and video container extensions accepted for upload.
var Formats = []string{"wav", "mp3", "m4a", "ogg", "flac", "mp4", "mov", "mkv", "webm"}

// ValidLanguage reports whether hint is a supported language hint. An empty
// hint counts as AutoLanguage.
func ValidLanguage(hint string) bool {
	return hint == "" || slices.Contains(Languages, hint)
}

// SupportedFile reports whether filename has an accepted extension.
func SupportedFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return slices.Contains(Formats, ext)
}

// DetectLanguage guesses the transcript language from its script: "ru" when
// Cyrillic letters outnumber Latin ones, "en" otherwise.
func DetectLanguage(text string) string {
	var cyr, lat int
	for _, r := range text {
		r = unicode.ToLower(r)
		switch {
		case (r >= 'а' && r <= 'я') || r == 'ё':
			cyr++
		case r >= 'a' && r <= 'z':
			lat++
		}
	}
	if cyr > lat {
		return "ru"
	}
	return "en"
}
