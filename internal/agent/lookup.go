package agent

import (
	"regexp"
	"strings"
)

var lookupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:find|look\s*up|search\s+for|show)\s+(?:contact\s+)?([A-Za-z]+(?:\s+[A-Za-z]+)*)`),
	regexp.MustCompile(`(?i)\b(?:info|details|number|email|phone)\s+(?:for|of)\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)`),
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)'s\b`),
}

// lookupName is the lexical fallback for contact lookups.
func lookupName(message string) string {
	for _, p := range lookupPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
