// Package storagetest holds behaviour checks shared by every storage.Repository.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Epoch is the first instant handed out by a StepClock.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// StepClock returns a clock that starts at Epoch and advances by step on every call.
func StepClock(step time.Duration) storage.Clock {
	var (
		mu   sync.Mutex
		next = Epoch
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

// Factory builds an empty repository whose clock is clock.
type Factory func(t *testing.T, clock storage.Clock) storage.Repository

// Run exercises repo construction through factory.
func Run(t *testing.T, factory Factory) {
	t.Run("contacts", func(t *testing.T) { testContacts(t, factory) })
	t.Run("interactions", func(t *testing.T) { testInteractions(t, factory) })
	t.Run("corrections", func(t *testing.T) { testCorrections(t, factory) })
}

func testContacts(t *testing.T, factory Factory) {
	ctx := context.Background()
	repo := factory(t, StepClock(time.Minute))

	john, err := repo.InsertContact(ctx, model.Contact{Name: "John Smith", Email: "john@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, john.ID)
	assert.Equal(t, Epoch, john.CreatedAt)

	_, err = repo.InsertContact(ctx, model.Contact{Name: "Johnny Appleseed"})
	require.NoError(t, err)
	_, err = repo.InsertContact(ctx, model.Contact{Name: "Mary Jones"})
	require.NoError(t, err)

	_, err = repo.InsertContact(ctx, model.Contact{Name: "  "})
	assert.Error(t, err)

	found, err := repo.FindContacts(ctx, "JOHN")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "John Smith", found[0].Name)
	assert.Equal(t, "Johnny Appleseed", found[1].Name)

	found, err = repo.FindContacts(ctx, "smi")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "john@example.com", found[0].Email)

	found, err = repo.FindContacts(ctx, "zed")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = repo.InsertContact(ctx, model.Contact{Name: "Élodie Durand"})
	require.NoError(t, err)
	found, err = repo.FindContacts(ctx, "ÉLODIE")
	require.NoError(t, err)
	require.Len(t, found, 1, "name matching folds non-ASCII letters")
	assert.Equal(t, "Élodie Durand", found[0].Name)

	updated, err := repo.UpdateContact(ctx, john.ID, model.ContactDraft{Phone: "+15551234567"})
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", updated.Phone)
	assert.Equal(t, "john@example.com", updated.Email)
	assert.Equal(t, "John Smith", updated.Name)

	byID, err := repo.GetContactsByIDs(ctx, []string{john.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "+15551234567", byID[0].Phone)

	_, err = repo.UpdateContact(ctx, "missing", model.ContactDraft{Name: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.InsertInteraction(ctx, john.ID, "coffee")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteContact(ctx, john.ID))
	assert.ErrorIs(t, repo.DeleteContact(ctx, john.ID), storage.ErrNotFound)

	left, err := repo.FindInteractions(ctx, model.InteractionFilter{ContactIDs: []string{john.ID}})
	require.NoError(t, err)
	assert.Empty(t, left, "interactions are removed with their contact")
}

func testInteractions(t *testing.T, factory Factory) {
	ctx := context.Background()
	repo := factory(t, StepClock(24*time.Hour))

	// clock: contacts at day 0 and 1, notes at days 2..5
	alice, err := repo.InsertContact(ctx, model.Contact{Name: "Alice"})
	require.NoError(t, err)
	bob, err := repo.InsertContact(ctx, model.Contact{Name: "Bob"})
	require.NoError(t, err)

	for _, n := range []struct{ id, note string }{
		{alice.ID, "a1"},
		{bob.ID, "b1"},
		{alice.ID, "a2"},
		{alice.ID, "a3"},
	} {
		_, err := repo.InsertInteraction(ctx, n.id, n.note)
		require.NoError(t, err)
	}

	_, err = repo.InsertInteraction(ctx, "ghost", "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := repo.FindInteractions(ctx, model.InteractionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1", "a2", "a3"}, notes(all))

	desc, err := repo.FindInteractions(ctx, model.InteractionFilter{
		ContactIDs: []string{alice.ID},
		Sort:       model.SortDesc,
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3", "a2"}, notes(desc))

	start := Epoch.Add(3 * 24 * time.Hour)
	end := Epoch.Add(4 * 24 * time.Hour)
	window, err := repo.FindInteractions(ctx, model.InteractionFilter{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "a2"}, notes(window), "bounds are inclusive")
	assert.True(t, window[0].CreatedAt.Equal(start))
}

func testCorrections(t *testing.T, factory Factory) {
	ctx := context.Background()
	repo := factory(t, StepClock(time.Second))

	for i, msg := range []string{"one", "two", "three"} {
		rec, err := repo.AppendCorrection(ctx, model.CorrectionRecord{
			Message:       msg,
			OriginalLabel: model.LabelUnknown,
			CorrectLabel:  model.Labels[i],
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
	}

	recent, err := repo.RecentCorrections(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Message)
	assert.Equal(t, "two", recent[1].Message)
	assert.Equal(t, model.LabelInteraction, recent[0].CorrectLabel)
	assert.Equal(t, model.LabelUnknown, recent[0].OriginalLabel)

	all, err := repo.RecentCorrections(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func notes(in []model.Interaction) []string {
	out := make([]string, 0, len(in))
	for _, i := range in {
		out = append(out, i.Note)
	}
	return out
}
