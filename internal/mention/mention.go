// Package mention finds @name references to team members in note text.
// Mentions are display decoration only; nothing is notified or linked.
package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Find returns the roster members mentioned in text, in roster order.
// Matching is case-insensitive and requires the name to end at a word
// boundary, so "@Jane Smithers" does not mention "Jane Smith".
func Find(text string, roster []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, member := range roster {
		if member == "" {
			continue
		}
		if mentioned(lower, "@"+strings.ToLower(member)) {
			found = append(found, member)
		}
	}
	return found
}

func mentioned(text, needle string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], needle)
		if i < 0 {
			return false
		}
		end := offset + i + len(needle)
		if end == len(text) {
			return true
		}
		r, _ := utf8.DecodeRuneInString(text[end:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
		offset = offset + i + 1
	}
	return false
}
