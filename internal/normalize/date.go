package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the canonical calendar date format.
const DateLayout = "2006-01-02"

// Parsed years outside this range come from fragments such as "12/" and are
// treated as absent.
const (
	minYear = 1000
	maxYear = 9999
)

var ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)

// ParseDate parses raw permissively ("March 3, 1990", "3/3/1990",
// "1990-03-03T10:00:00Z", "3rd March 1990"...).
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	raw = ordinalSuffix.ReplaceAllString(raw, "$1")
	raw = strings.ReplaceAll(raw, ",", ", ")
	raw = strings.Join(strings.Fields(raw), " ")

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil || t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}

// Date reformats raw as YYYY-MM-DD. Unparseable input yields false.
func Date(raw string) (string, bool) {
	t, ok := ParseDate(raw)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}
