package store

import (
	"strings"
	"time"
	"unicode"
)

// TimestampLayout is the suffix of every output directory, in local time.
const TimestampLayout = "2006-01-02_15-04-05"

// Slug lower-cases the prompt and turns whitespace and path separators into
// hyphens. Nothing else is touched, so an empty prompt gives an empty slug.
func Slug(prompt string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, strings.ToLower(prompt))
}

func DirName(prompt string, t time.Time) string {
	return Slug(prompt) + "_" + t.Format(TimestampLayout)
}

// ParseDirName splits a name produced by DirName back into slug and time.
func ParseDirName(name string) (string, time.Time, bool) {
	n := len(name) - len(TimestampLayout)
	if n < 1 || name[n-1] != '_' {
		return "", time.Time{}, false
	}
	t, err := time.ParseInLocation(TimestampLayout, name[n:], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return name[:n-1], t, true
}
