package model

import "time"

// Phase is the position of a sender inside the add-contact flow.
type Phase string

const (
	PhaseCollecting           Phase = "collecting_fields"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
)

// Session is the ephemeral per-sender state kept between turns.
type Session struct {
	Sender    string          `json:"sender"`
	Flow      *ContactFlow    `json:"flow,omitempty"`
	Last      *Classification `json:"last,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ContactFlow is an open add-contact conversation.
type ContactFlow struct {
	Draft ContactDraft `json:"draft"`
	Phase Phase        `json:"phase"`
}

// IsEmpty reports whether the session carries nothing worth persisting.
func (s *Session) IsEmpty() bool {
	return s == nil || (s.Flow == nil && s.Last == nil)
}

// AwaitingConfirmation reports whether the sender owes a yes/no answer.
func (s *Session) AwaitingConfirmation() bool {
	return s != nil && s.Flow != nil && s.Flow.Phase == PhaseAwaitingConfirmation
}
