package utils

import (
	"strings"
	"unicode/utf8"
)

// SplitLabels splits a comma separated label list. Entries are trimmed,
// blank entries are dropped and order and duplicates are kept.
func SplitLabels(raw string) []string {
	raw = SanitizeUTF8(raw)

	labels := make([]string, 0)
	for _, l := range strings.Split(raw, ",") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		labels = append(labels, l)
	}
	return labels
}

// SanitizeUTF8 drops invalid UTF-8 sequences from text
func SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}
