// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"strings"
	"unicode/utf8"
)

// Words splits text on whitespace runs.
func Words(text string) []string {
	return strings.Fields(text)
}

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EndsWithTerminalPunctuation reports whether the trimmed text ends in '.', '!' or '?'.
func EndsWithTerminalPunctuation(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(t)
	return r == '.' || r == '!' || r == '?'
}

// ContainsAny reports whether lower contains any of the keywords.
// Callers pass already lower-cased text.
func ContainsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Truncate shortens s to at most n bytes for log output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
