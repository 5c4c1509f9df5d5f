// Package budget measures prompt text against a context budget. The unit is
// pluggable: [Chars] counts Unicode code points, [Tokens] counts cl100k_base
// tokens. Both answer the same two questions: how big is this text, and what
// is the longest prefix that fits in n units.
package budget

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Counter measures and cuts text in a fixed unit.
type Counter interface {
	// Count returns the size of s.
	Count(s string) int
	// Cut returns the longest prefix of s whose Count is at most n.
	Cut(s string, n int) string
	// Unit names the unit for logs ("chars", "tokens").
	Unit() string
}

// New returns the counter for unit: "chars" (default) or "tokens".
func New(unit string) (Counter, error) {
	switch strings.ToLower(unit) {
	case "", "chars", "characters":
		return Chars{}, nil
	case "tokens":
		return NewTokens()
	default:
		return nil, fmt.Errorf("budget: unknown unit %q (valid: chars, tokens)", unit)
	}
}

// Chars counts Unicode code points, so Devanagari text is measured the same
// way as Latin text.
type Chars struct{}

// Count returns the number of runes in s.
func (Chars) Count(s string) int { return utf8.RuneCountInString(s) }

// Cut returns the first n runes of s.
func (Chars) Cut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Unit returns "chars".
func (Chars) Unit() string { return "chars" }

// CutWords cuts s to fit n units with c, backing off to the last whitespace
// when the cut would split a word. A text with no whitespace in the kept
// prefix is cut hard.
func CutWords(c Counter, s string, n int) string {
	p := c.Cut(s, n)
	if len(p) == len(s) || p == "" {
		return p
	}
	last, _ := utf8.DecodeLastRuneInString(p)
	next, _ := utf8.DecodeRuneInString(s[len(p):])
	if unicode.IsSpace(last) || unicode.IsSpace(next) {
		return p
	}
	if i := strings.LastIndexFunc(p, unicode.IsSpace); i >= 0 {
		return p[:i]
	}
	return p
}
