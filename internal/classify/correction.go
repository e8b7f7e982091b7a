package classify

import (
	"context"
	"fmt"
	"strings"

	"sms_crm_agent/internal/model"
)

// FixPrefix starts a correction command, e.g. "FIX: interaction".
const FixPrefix = "FIX:"

// FixHelp is the reply for a correction naming no known label.
const FixHelp = "Unknown fix type. Must be FIX:QUERY, FIX:INTERACTION, FIX:CONTACT, FIX:QUERY_CONTACTS or one of contacts_change, interaction_query."

var fixAliases = map[string]model.Label{
	"contact":  model.LabelContactsChange,
	"contacts": model.LabelQueryContacts,
	"query":    model.LabelInteractionQuery,
}

// ParseFix reports whether message is a correction command and, if so, the
// target it names. valid is false when the target is not a routable label.
func ParseFix(message string) (target model.Label, isFix bool, valid bool) {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < len(FixPrefix) || !strings.EqualFold(trimmed[:len(FixPrefix)], FixPrefix) {
		return "", false, false
	}

	raw := strings.ToLower(strings.TrimSpace(trimmed[len(FixPrefix):]))
	if label, ok := fixAliases[raw]; ok {
		return label, true, true
	}
	label, ok := model.ParseLabel(raw)
	if !ok || label == model.LabelUnknown {
		return "", true, false
	}
	return label, true, true
}

// RecordCorrection appends the audit row for correcting last to label.
func (c *Classifier) RecordCorrection(ctx context.Context, last model.Classification, label model.Label) error {
	if c.corrections == nil {
		return nil
	}
	_, err := c.corrections.AppendCorrection(ctx, model.CorrectionRecord{
		Message:       last.Message,
		OriginalLabel: last.Label,
		CorrectLabel:  label,
	})
	if err != nil {
		return fmt.Errorf("recording correction: %w", err)
	}
	return nil
}
