package model

import "strings"

// Label is the closed set of intents a message can be routed to.
type Label string

const (
	LabelContactsChange   Label = "contacts_change"
	LabelQueryContacts    Label = "query_contacts"
	LabelInteraction      Label = "interaction"
	LabelInteractionQuery Label = "interaction_query"
	LabelUnknown          Label = "unknown"
)

// Labels lists every valid label in prompt order.
var Labels = []Label{
	LabelContactsChange,
	LabelQueryContacts,
	LabelInteraction,
	LabelInteractionQuery,
	LabelUnknown,
}

// ParseLabel maps oracle or user text onto a canonical label. The second
// return is false for anything outside the closed set.
func ParseLabel(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`.")
	for _, l := range Labels {
		if string(l) == s {
			return l, true
		}
	}
	return LabelUnknown, false
}

// IsQuery reports whether the label reads data rather than writing it.
func (l Label) IsQuery() bool {
	return l == LabelInteractionQuery || l == LabelQueryContacts
}

// Classification remembers the label a message was routed under so it can be
// corrected. FlowBefore is the add-contact flow as it stood before that turn.
type Classification struct {
	Message    string       `json:"message"`
	Label      Label        `json:"label"`
	FlowBefore *ContactFlow `json:"flow_before,omitempty"`
}
