// Package conversation sequences the multi-message add-contact flow and
// keeps per-sender state between turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sms_crm_agent/internal/extract"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"

	"github.com/bytedance/sonic"
)

const (
	ReplySaved     = "Contact saved successfully!"
	ReplyCancelled = "Contact creation cancelled."
)

// ContactExtractor pulls contact fields out of a message.
type ContactExtractor interface {
	Contact(ctx context.Context, message string) (extract.ContactResult, error)
}

// Outcome is the result of one step. A nil Flow means the flow is finished
// and its state must be removed.
type Outcome struct {
	Reply     string
	Flow      *model.ContactFlow
	Committed *model.Contact
}

// Machine drives collecting_fields → awaiting_confirmation → committed/cancelled.
type Machine struct {
	extractor ContactExtractor
	contacts  storage.ContactStore
}

func NewMachine(extractor ContactExtractor, contacts storage.ContactStore) *Machine {
	return &Machine{extractor: extractor, contacts: contacts}
}

// IsAffirmative matches the confirmation tokens yes and y.
func IsAffirmative(message string) bool {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "yes", "y":
		return true
	}
	return false
}

// IsNegative matches the cancellation tokens no and n.
func IsNegative(message string) bool {
	switch strings.ToLower(strings.TrimSpace(message)) {
	case "no", "n":
		return true
	}
	return false
}

// Step handles one message for the sender's flow; flow may be nil for a fresh one.
func (m *Machine) Step(ctx context.Context, flow *model.ContactFlow, message string) Outcome {
	if flow != nil && flow.Phase == model.PhaseAwaitingConfirmation {
		switch {
		case IsAffirmative(message):
			return m.commit(ctx, flow)
		case IsNegative(message):
			return Outcome{Reply: ReplyCancelled}
		}
	}

	res, err := m.extractor.Contact(ctx, message)
	if err != nil {
		if !errors.Is(err, extract.ErrExtraction) {
			logger.Warn().Err(err).Msg("contact extraction returned an unexpected error")
		}
		res = extract.ContactResult{}
	}
	return Advance(flow, res.Draft)
}

// Advance merges extracted into the flow (first write wins) and moves it to
// the phase its completeness dictates.
func Advance(flow *model.ContactFlow, extracted model.ContactDraft) Outcome {
	var draft model.ContactDraft
	if flow != nil {
		draft = flow.Draft
	}
	draft = draft.Merge(extracted)

	if missing := draft.Missing(); len(missing) > 0 {
		return Outcome{
			Reply: MissingReply(missing),
			Flow:  &model.ContactFlow{Draft: draft, Phase: model.PhaseCollecting},
		}
	}
	return Outcome{
		Reply: ConfirmReply(draft),
		Flow:  &model.ContactFlow{Draft: draft, Phase: model.PhaseAwaitingConfirmation},
	}
}

func (m *Machine) commit(ctx context.Context, flow *model.ContactFlow) Outcome {
	saved, err := m.contacts.InsertContact(ctx, flow.Draft.ToContact())
	if err != nil {
		logger.Error().Err(err).Str("name", flow.Draft.Name).Msg("saving contact failed")
		// keep the flow so the user can answer yes again
		return Outcome{Reply: fmt.Sprintf("Error saving contact: %v", err), Flow: flow}
	}
	logger.Info().Str("contact_id", saved.ID).Msg("contact saved")
	return Outcome{Reply: ReplySaved, Committed: &saved}
}

// MissingReply lists the missing fields in canonical order.
func MissingReply(missing []model.ContactField) string {
	labels := make([]string, 0, len(missing))
	for _, f := range missing {
		labels = append(labels, f.Prompt())
	}
	return "Missing: " + strings.Join(labels, ", ") + "\nPlease provide them."
}

// ConfirmReply shows the full pending record and asks for yes/no.
func ConfirmReply(draft model.ContactDraft) string {
	body, err := sonic.ConfigDefault.MarshalIndent(draft, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprintf("%+v", draft))
	}
	return "Please confirm the contact:\n" + string(body) + "\nReply 'yes' or 'y' to confirm, or 'no' to cancel."
}
