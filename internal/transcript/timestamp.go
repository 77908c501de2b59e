package transcript

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the normalized record timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	startedLabel   = regexp.MustCompile(`(?i)(?:chat|session|conversation)\s+started:[ \t]*([^\n]+)`)
	trailingZone   = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	startedLayouts = []string{
		"Monday, January 2, 2006, 15:04:05",
		"Monday, January 2, 2006 15:04:05",
		"Monday, January 2, 2006, 3:04:05 PM",
		"January 2, 2006, 15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
)

// ExtractTimestamp returns the normalized start time of a conversation span,
// or "" when no label is present or none of the known layouts parse.
func ExtractTimestamp(span string) string {
	for _, m := range startedLabel.FindAllStringSubmatch(span, -1) {
		value := strings.TrimSpace(trailingZone.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		for _, layout := range startedLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.Format(TimestampLayout)
			}
		}
	}
	return ""
}
