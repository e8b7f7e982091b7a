package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sms_crm_agent/internal/model"

	"github.com/google/uuid"
)

// Memory is a process-local Repository.
type Memory struct {
	mu           sync.RWMutex
	now          Clock
	contacts     []model.Contact
	interactions []model.Interaction
	corrections  []model.CorrectionRecord
}

var _ Repository = (*Memory)(nil)

// NewMemory returns an empty repository. A nil clock uses SystemClock.
func NewMemory(clock Clock) *Memory {
	if clock == nil {
		clock = SystemClock
	}
	return &Memory{now: clock}
}

func (m *Memory) FindContacts(_ context.Context, fragment string) ([]model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(fragment)
	var out []model.Contact
	for _, c := range m.contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (m *Memory) GetContactsByIDs(_ context.Context, ids []string) ([]model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Contact
	for _, c := range m.contacts {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) InsertContact(_ context.Context, c model.Contact) (model.Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.Contact{}, fmt.Errorf("inserting contact: name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = uuid.New().String()
	c.CreatedAt = m.now()
	m.contacts = append(m.contacts, c)
	return c, nil
}

func (m *Memory) UpdateContact(_ context.Context, id string, changes model.ContactDraft) (model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.contacts {
		if c.ID != id {
			continue
		}
		m.contacts[i] = ApplyChanges(c, changes)
		return m.contacts[i], nil
	}
	return model.Contact{}, fmt.Errorf("updating contact %s: %w", id, ErrNotFound)
}

func (m *Memory) DeleteContact(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, c := range m.contacts {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("deleting contact %s: %w", id, ErrNotFound)
	}
	m.contacts = append(m.contacts[:idx], m.contacts[idx+1:]...)

	kept := m.interactions[:0]
	for _, in := range m.interactions {
		if in.ContactID != id {
			kept = append(kept, in)
		}
	}
	m.interactions = kept
	return nil
}

func (m *Memory) InsertInteraction(_ context.Context, contactID, note string) (model.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, c := range m.contacts {
		if c.ID == contactID {
			found = true
			break
		}
	}
	if !found {
		return model.Interaction{}, fmt.Errorf("inserting interaction for %s: %w", contactID, ErrNotFound)
	}

	in := model.Interaction{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Note:      note,
		CreatedAt: m.now(),
	}
	m.interactions = append(m.interactions, in)
	return in, nil
}

func (m *Memory) FindInteractions(_ context.Context, f model.InteractionFilter) ([]model.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if len(f.ContactIDs) > 0 {
		ids = make(map[string]bool, len(f.ContactIDs))
		for _, id := range f.ContactIDs {
			ids[id] = true
		}
	}

	var out []model.Interaction
	for _, in := range m.interactions {
		if ids != nil && !ids[in.ContactID] {
			continue
		}
		if f.Start != nil && in.CreatedAt.Before(*f.Start) {
			continue
		}
		if f.End != nil && in.CreatedAt.After(*f.End) {
			continue
		}
		out = append(out, in)
	}

	// insertion order breaks timestamp ties
	sort.SliceStable(out, func(i, j int) bool {
		if f.Sort == model.SortDesc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Sort == model.SortDesc {
		stableReverseTies(out)
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// stableReverseTies makes equal timestamps come out newest-inserted first for
// descending queries, matching the SQL rowid tie-break.
func stableReverseTies(in []model.Interaction) {
	for i := 0; i < len(in); {
		j := i + 1
		for j < len(in) && in[j].CreatedAt.Equal(in[i].CreatedAt) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			in[a], in[b] = in[b], in[a]
		}
		i = j
	}
}

func (m *Memory) AppendCorrection(_ context.Context, rec model.CorrectionRecord) (model.CorrectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.New().String()
	rec.CreatedAt = m.now()
	m.corrections = append(m.corrections, rec)
	return rec, nil
}

func (m *Memory) RecentCorrections(_ context.Context, limit int) ([]model.CorrectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CorrectionRecord
	for i := len(m.corrections) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.corrections[i])
	}
	return out, nil
}

// ApplyChanges returns c with every non-empty field of changes copied over.
func ApplyChanges(c model.Contact, changes model.ContactDraft) model.Contact {
	if v := strings.TrimSpace(changes.Name); v != "" {
		c.Name = v
	}
	if v := strings.TrimSpace(changes.Phone); v != "" {
		c.Phone = v
	}
	if v := strings.TrimSpace(changes.Email); v != "" {
		c.Email = v
	}
	if v := strings.TrimSpace(changes.Birthday); v != "" {
		c.Birthday = v
	}
	if v := strings.TrimSpace(changes.FamilyMembers); v != "" {
		c.FamilyMembers = v
	}
	if v := strings.TrimSpace(changes.Description); v != "" {
		c.Description = v
	}
	return c
}
