// Package langdetect handles the languages the advisor answers in.
package langdetect

import (
	"strings"
	"unicode"
)

// Supported language codes.
const (
	English = "en"
	Hindi   = "hi"
	Marathi = "mr"
)

// devanagariThreshold is the share of Devanagari letters above which a text
// is treated as Hindi.
const devanagariThreshold = 0.3

var names = map[string]string{
	English: "English",
	Hindi:   "Hindi",
	Marathi: "Marathi",
}

// Supported reports whether code is a supported language.
func Supported(code string) bool {
	_, ok := names[code]
	return ok
}

// Name returns the English display name of a language code, or English.
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return names[English]
}

// Detect guesses the language of text from its script. Marathi and Hindi
// share Devanagari, so Devanagari text is reported as Hindi; callers that
// know better pass the language explicitly.
func Detect(text string) string {
	var letters, deva int
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Devanagari, r) {
			deva++
		}
	}
	if letters > 0 && float64(deva)/float64(letters) > devanagariThreshold {
		return Hindi
	}
	return English
}

// Normalize lowercases and trims a language code; an empty code is detected
// from sample.
func Normalize(code, sample string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Detect(sample)
	}
	return code
}
