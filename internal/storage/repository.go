// Package storage defines the CRM persistence ports and an in-memory
// implementation used by the chat REPL and tests.
package storage

import (
	"context"
	"errors"
	"time"

	"sms_crm_agent/internal/model"
)

// ErrNotFound is returned when an id does not reference a stored row.
var ErrNotFound = errors.New("not found")

// ContactStore persists contacts.
type ContactStore interface {
	// FindContacts returns contacts whose name contains fragment,
	// case-insensitively, ordered by name.
	FindContacts(ctx context.Context, fragment string) ([]model.Contact, error)

	// GetContactsByIDs returns the contacts for ids that exist; unknown ids are skipped.
	GetContactsByIDs(ctx context.Context, ids []string) ([]model.Contact, error)

	// InsertContact stores c and returns it with ID and CreatedAt assigned.
	InsertContact(ctx context.Context, c model.Contact) (model.Contact, error)

	// UpdateContact overwrites only the non-empty fields of changes.
	UpdateContact(ctx context.Context, id string, changes model.ContactDraft) (model.Contact, error)

	// DeleteContact removes the contact and its interactions.
	DeleteContact(ctx context.Context, id string) error
}

// InteractionStore persists interaction notes.
type InteractionStore interface {
	// InsertInteraction stores a note for contactID, stamped with the insert time.
	InsertInteraction(ctx context.Context, contactID, note string) (model.Interaction, error)

	// FindInteractions returns interactions matching f. Start and End are inclusive.
	FindInteractions(ctx context.Context, f model.InteractionFilter) ([]model.Interaction, error)
}

// CorrectionStore is the append-only classification audit log.
type CorrectionStore interface {
	AppendCorrection(ctx context.Context, rec model.CorrectionRecord) (model.CorrectionRecord, error)

	// RecentCorrections returns at most limit records, newest first.
	RecentCorrections(ctx context.Context, limit int) ([]model.CorrectionRecord, error)
}

// Repository is everything the assistant needs from the relational backend.
type Repository interface {
	ContactStore
	InteractionStore
	CorrectionStore
}

// Clock supplies insert timestamps.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}
