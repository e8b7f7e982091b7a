package classify

import (
	"regexp"
	"strings"

	"sms_crm_agent/internal/model"
)

// Rule forces a label when its predicate matches. Rules run in order before
// the oracle is consulted; the first match wins.
type Rule struct {
	Name  string
	Match func(lower string) bool
	Label model.Label
}

// ContainsAny matches when the lowercased message contains any phrase.
func ContainsAny(phrases ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

// InteractionPhrases are cues that a message logs something that happened.
var InteractionPhrases = []string{
	"had a chat with",
	"call with",
	"spoke with",
	"spoke to",
	"met with",
	"had coffee with",
	"had lunch with",
	"had a call with",
}

var (
	queryLead        = regexp.MustCompile(`^(show me|tell me|what|who|when|how|list|give me|remind me)\b`)
	interactionWords = regexp.MustCompile(`\b(spoke|speak|talk|talked|discuss|discussed|discussions?|met|meet|meetings?|interactions?|chat|chats|chatted|calls?|called)\b`)
	lastNTimes       = regexp.MustCompile(`\blast\s+\d+\s+(times|interactions|discussions|chats|calls|meetings|conversations)\b`)
)

// IsInteractionQuestion matches requests to recall past interactions, e.g.
// "show me the last 3 times I spoke with Xander". Such messages carry the
// same cues as interaction logs.
func IsInteractionQuestion(lower string) bool {
	if lastNTimes.MatchString(lower) {
		return true
	}
	return queryLead.MatchString(lower) && interactionWords.MatchString(lower)
}

// DefaultRules favours recall for interaction logging, except for messages
// that ask about past interactions.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "query_cue",
			Match: IsInteractionQuestion,
			Label: model.LabelInteractionQuery,
		},
		{
			Name:  "interaction_cue",
			Match: ContainsAny(InteractionPhrases...),
			Label: model.LabelInteraction,
		},
	}
}

// DefaultQueryPatterns catch interaction questions the oracle missed.
var DefaultQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bwhat\b`),
	regexp.MustCompile(`\btell me\b`),
	regexp.MustCompile(`\bshow me\b`),
	regexp.MustCompile(`\bwho did i speak with\b`),
	regexp.MustCompile(`\bdiscussions?\b`),
	regexp.MustCompile(`\bwho did i talk to\b`),
	regexp.MustCompile(`\bwho did i meet\b`),
	regexp.MustCompile(`\bmy last (discussion|interaction)\b`),
	regexp.MustCompile(`\blast\s+\d+\b`),
}

// MatchesQuery reports whether lower hits any of patterns.
func MatchesQuery(patterns []*regexp.Regexp, lower string) bool {
	for _, p := range patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
