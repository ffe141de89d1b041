package core

import (
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatSet is the allow-list of file extensions the hook will deliver
type FormatSet map[string]struct{}

// NewFormatSet builds a FormatSet from configured extensions, tolerating a
// leading dot and any letter case
func NewFormatSet(formats []string) FormatSet {
	set := make(FormatSet, len(formats))
	for _, f := range formats {
		f = NormalizeFormat(f)
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// IsSupported checks if the file extension of path is in the set
func (s FormatSet) IsSupported(path string) bool {
	ext := Extension(path)
	if ext == "" {
		return false
	}
	_, ok := s[ext]
	return ok
}

// List returns the formats in sorted order
func (s FormatSet) List() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Extension returns the uppercased text after the last dot of the file name.
// Names without a dot, ending in a dot or starting with their only dot have
// no extension.
func Extension(path string) string {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return upper(base[idx+1:])
}

// NormalizeFormat folds a configured format to the form Extension returns
func NormalizeFormat(f string) string {
	return upper(strings.TrimPrefix(strings.TrimSpace(f), "."))
}

func upper(ext string) string {
	return cases.Upper(language.Und).String(ext)
}
