package agent

import (
	"context"
	"fmt"
	"strings"

	"sms_crm_agent/internal/conversation"
	"sms_crm_agent/internal/extract"
	"sms_crm_agent/internal/logger"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/query"
	"sms_crm_agent/internal/resolve"
	"sms_crm_agent/internal/storage"
)

// ==================== contacts_change ====================

// ContactsHandler adds (via the conversation machine), updates and deletes contacts.
type ContactsHandler struct {
	extractor *extract.Extractor
	machine   *conversation.Machine
	resolver  *resolve.Resolver
	contacts  storage.ContactStore
}

func NewContactsHandler(extractor *extract.Extractor, machine *conversation.Machine, resolver *resolve.Resolver, contacts storage.ContactStore) *ContactsHandler {
	return &ContactsHandler{extractor: extractor, machine: machine, resolver: resolver, contacts: contacts}
}

func (h *ContactsHandler) Handle(ctx context.Context, turn *Turn) (string, error) {
	if turn.Session.Flow != nil {
		out := h.machine.Step(ctx, turn.Session.Flow, turn.Message)
		turn.Session.Flow = out.Flow
		return out.Reply, nil
	}

	res, err := h.extractor.Contact(ctx, turn.Message)
	if err != nil {
		logger.Warn().Err(err).Msg("contact extraction failed")
	}

	switch res.Action {
	case extract.ActionUpdate:
		return h.update(ctx, res.Draft)
	case extract.ActionDelete:
		return h.delete(ctx, res.Draft.Name)
	}

	out := conversation.Advance(nil, res.Draft)
	turn.Session.Flow = out.Flow
	return out.Reply, nil
}

func (h *ContactsHandler) update(ctx context.Context, draft model.ContactDraft) (string, error) {
	if draft.Name == "" {
		return "Couldn't find a contact name to update. Please include one.", nil
	}
	found, err := h.resolver.Resolve(ctx, draft.Name)
	if err != nil {
		return "", err
	}
	switch found.Kind {
	case resolve.NoMatch:
		return fmt.Sprintf("No contact found matching %s.", draft.Name), nil
	case resolve.AmbiguousMatch:
		return resolve.AmbiguityReply(found), nil
	}

	changes := draft
	changes.Name = ""
	var changed []string
	for _, f := range model.RequiredContactFields {
		if changes.Get(f) != "" {
			changed = append(changed, strings.ReplaceAll(string(f), "_", " "))
		}
	}
	if len(changed) == 0 {
		return fmt.Sprintf("Nothing to update for %s. Tell me which details changed.", found.Contact.Name), nil
	}

	if _, err := h.contacts.UpdateContact(ctx, found.Contact.ID, changes); err != nil {
		logger.Error().Err(err).Str("contact_id", found.Contact.ID).Msg("updating contact failed")
		return fmt.Sprintf("Error updating contact: %v", err), nil
	}
	return fmt.Sprintf("Contact '%s' updated successfully (%s).", found.Contact.Name, strings.Join(changed, ", ")), nil
}

func (h *ContactsHandler) delete(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "I didn't find a contact name to delete. Please specify.", nil
	}
	found, err := h.resolver.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	switch found.Kind {
	case resolve.NoMatch:
		return fmt.Sprintf("No contact found matching %s.", name), nil
	case resolve.AmbiguousMatch:
		return resolve.AmbiguityReply(found), nil
	}

	if err := h.contacts.DeleteContact(ctx, found.Contact.ID); err != nil {
		logger.Error().Err(err).Str("contact_id", found.Contact.ID).Msg("deleting contact failed")
		return fmt.Sprintf("Error deleting contact: %v", err), nil
	}
	return fmt.Sprintf("Contact '%s' deleted successfully.", found.Contact.Name), nil
}

// ==================== interaction ====================

// InteractionHandler logs a note against a contact, creating the contact on a miss.
type InteractionHandler struct {
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	repo      storage.Repository
}

func NewInteractionHandler(extractor *extract.Extractor, resolver *resolve.Resolver, repo storage.Repository) *InteractionHandler {
	return &InteractionHandler{extractor: extractor, resolver: resolver, repo: repo}
}

func (h *InteractionHandler) Handle(ctx context.Context, turn *Turn) (string, error) {
	res, err := h.extractor.Interaction(ctx, turn.Message)
	if err != nil {
		logger.Warn().Err(err).Msg("interaction extraction failed")
	}
	if res.ContactName == "" {
		return "Sorry, I couldn't detect a name. Try something like 'Had a call with Jane Doe...'", nil
	}
	note := res.Note
	if note == "" {
		note = turn.Message
	}

	found, err := h.resolver.Resolve(ctx, res.ContactName)
	if err != nil {
		return "", err
	}

	var contact model.Contact
	created := false
	switch found.Kind {
	case resolve.AmbiguousMatch:
		return resolve.AmbiguityReply(found), nil
	case resolve.UniqueMatch:
		contact = found.Contact
	default:
		contact, err = h.repo.InsertContact(ctx, model.Contact{Name: res.ContactName})
		if err != nil {
			return "", err
		}
		created = true
		logger.Info().Str("contact_id", contact.ID).Msg("contact auto-created for interaction")
	}

	if _, err := h.repo.InsertInteraction(ctx, contact.ID, note); err != nil {
		return fmt.Sprintf("Error saving interaction: %v", err), nil
	}
	if created {
		return fmt.Sprintf("Created new contact %s. Interaction saved under %s!", contact.Name, contact.Name), nil
	}
	return fmt.Sprintf("Interaction saved under %s!", contact.Name), nil
}

// ==================== interaction_query ====================

// InteractionQueryHandler answers questions about past interactions.
type InteractionQueryHandler struct {
	engine *query.Engine
}

func NewInteractionQueryHandler(engine *query.Engine) *InteractionQueryHandler {
	return &InteractionQueryHandler{engine: engine}
}

func (h *InteractionQueryHandler) Handle(ctx context.Context, turn *Turn) (string, error) {
	res, err := h.engine.Run(ctx, turn.Message)
	if err != nil {
		logger.Error().Err(err).Msg("interaction query failed")
		return "Sorry, something went wrong running that query.", nil
	}
	return res.Reply, nil
}

// ==================== query_contacts ====================

// ContactQueryHandler looks contacts up by name and shows their details.
type ContactQueryHandler struct {
	extractor *extract.Extractor
	resolver  *resolve.Resolver
}

func NewContactQueryHandler(extractor *extract.Extractor, resolver *resolve.Resolver) *ContactQueryHandler {
	return &ContactQueryHandler{extractor: extractor, resolver: resolver}
}

func (h *ContactQueryHandler) Handle(ctx context.Context, turn *Turn) (string, error) {
	name, err := h.extractor.ContactName(ctx, turn.Message)
	if err != nil || name == "" {
		name = lookupName(turn.Message)
	}
	if name == "" {
		return "Which contact are you looking for? Try 'find Jane Doe'.", nil
	}

	found, err := h.resolver.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	switch found.Kind {
	case resolve.NoMatch:
		return "No contacts found matching your query.", nil
	case resolve.AmbiguousMatch:
		lines := []string{fmt.Sprintf("Found %d contacts:", len(found.Candidates))}
		for _, c := range found.Candidates {
			lines = append(lines, "- "+contactLine(c))
		}
		return strings.Join(lines, "\n"), nil
	}
	return contactDetails(found.Contact), nil
}

func contactLine(c model.Contact) string {
	parts := []string{c.Name}
	if c.Phone != "" {
		parts = append(parts, c.Phone)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	return strings.Join(parts, ", ")
}

func contactDetails(c model.Contact) string {
	lines := []string{c.Name}
	for _, kv := range []struct{ label, value string }{
		{"Phone", c.Phone},
		{"Email", c.Email},
		{"Birthday", c.Birthday},
		{"Family", c.FamilyMembers},
		{"Notes", c.Description},
	} {
		if kv.value != "" {
			lines = append(lines, kv.label+": "+kv.value)
		}
	}
	return strings.Join(lines, "\n")
}
