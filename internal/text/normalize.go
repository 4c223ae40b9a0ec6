// Package text holds pure transcript canonicalization. Nothing here has
// side effects or configuration; both the intent router and the decision
// arbiter normalize through the same function so they can never disagree
// about what an utterance "says".
package text

import (
	"strconv"
	"strings"
)

// Speech-to-text output spells small numbers out. Only 0..10 is mapped;
// anything larger arrives as digits from the recognizer anyway.
var wordTokens = map[string]string{
	"zero":    "0",
	"one":     "1",
	"two":     "2",
	"three":   "3",
	"four":    "4",
	"five":    "5",
	"six":     "6",
	"seven":   "7",
	"eight":   "8",
	"nine":    "9",
	"ten":     "10",
	"percent": "%",
}

// Normalize lowercases, strips everything except ASCII alphanumerics,
// whitespace and '%', collapses runs of whitespace, and rewrites standalone
// number words to digits ("five" -> "5", "percent" -> "%"). It is
// deterministic and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteRune(ch + ('a' - 'A'))
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			b.WriteByte(' ')
		case ch == '%':
			// Kept so the word->symbol rewrite below stays idempotent.
			b.WriteRune(ch)
		}
	}
	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if d, ok := wordTokens[tok]; ok {
			tokens[i] = d
		}
	}
	return strings.Join(tokens, " ")
}

// FirstInt extracts the first run of ASCII digits in s as an integer.
// Returns false when s contains no digits or the run overflows int64.
func FirstInt(s string) (int64, bool) {
	start, end := -1, len(s)
	for i, ch := range s {
		digit := ch >= '0' && ch <= '9'
		if digit && start < 0 {
			start = i
		}
		if !digit && start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(s[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
