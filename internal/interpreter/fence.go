package interpreter

import (
	"strings"
	"unicode"
)

const fence = "```"

// StripCodeFence removes a leading ``` marker, with or without a language
// tag such as "json", and a trailing ``` marker. Either marker may be
// missing. Text without fences is returned trimmed and otherwise unchanged.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(s, fence); ok {
		s = rest
		if i := strings.IndexAny(s, "{[\n"); i >= 0 && isLanguageTag(strings.TrimSpace(s[:i])) {
			s = s[i:]
		}
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
