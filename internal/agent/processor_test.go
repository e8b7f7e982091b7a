package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sms_crm_agent/internal/conversation"
	"sms_crm_agent/internal/llm"
	"sms_crm_agent/internal/llm/llmtest"
	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sender = "+15550001111"

// recordingRepo counts reads and writes and can fail contact writes.
type recordingRepo struct {
	*storage.Memory
	finds      atomic.Int32
	updates    atomic.Int32
	deletes    atomic.Int32
	insertFail error
	updateFail error
	deleteFail error
}

func (r *recordingRepo) UpdateContact(ctx context.Context, id string, changes model.ContactDraft) (model.Contact, error) {
	r.updates.Add(1)
	if r.updateFail != nil {
		return model.Contact{}, r.updateFail
	}
	return r.Memory.UpdateContact(ctx, id, changes)
}

func (r *recordingRepo) DeleteContact(ctx context.Context, id string) error {
	r.deletes.Add(1)
	if r.deleteFail != nil {
		return r.deleteFail
	}
	return r.Memory.DeleteContact(ctx, id)
}

func (r *recordingRepo) FindInteractions(ctx context.Context, f model.InteractionFilter) ([]model.Interaction, error) {
	r.finds.Add(1)
	return r.Memory.FindInteractions(ctx, f)
}

func (r *recordingRepo) InsertContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	if r.insertFail != nil {
		return model.Contact{}, r.insertFail
	}
	return r.Memory.InsertContact(ctx, c)
}

type fixture struct {
	oracle   *llmtest.Oracle
	repo     *recordingRepo
	sessions *conversation.MemoryStore
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		oracle:   llmtest.New(),
		repo:     &recordingRepo{Memory: storage.NewMemory(nil)},
		sessions: conversation.NewMemoryStore(time.Minute),
	}
	proc, err := Build(f.oracle, f.repo, f.sessions, Options{CountryCode: "1"})
	require.NoError(t, err)
	f.proc = proc
	return f
}

func (f *fixture) send(msg string) string {
	return f.proc.HandleMessage(context.Background(), sender, msg)
}

func (f *fixture) session(t *testing.T) *model.Session {
	t.Helper()
	s, err := f.sessions.Load(context.Background(), sender)
	require.NoError(t, err)
	return s
}

func (f *fixture) addContact(t *testing.T, name string) model.Contact {
	t.Helper()
	c, err := f.repo.Memory.InsertContact(context.Background(), model.Contact{Name: name})
	require.NoError(t, err)
	return c
}

func TestProcessor_AddContactReachesConfirmation(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "add", "name": "Jane Roe", "phone": "555-123-4567", "email": "jane@x.com",
			"birthday": "1990-04-02", "family_members": "no family", "description": "works at Acme"}`)

	reply := f.send("Add contact Jane Roe, phone 555-123-4567, email jane@x.com, born 1990-04-02, no family, works at Acme")

	assert.Contains(t, reply, "Please confirm the contact:")
	assert.Contains(t, reply, "+15551234567")

	s := f.session(t)
	require.NotNil(t, s.Flow)
	assert.Equal(t, model.PhaseAwaitingConfirmation, s.Flow.Phase)
	assert.Equal(t, "+15551234567", s.Flow.Draft.Phone)
	assert.Equal(t, "1990-04-02", s.Flow.Draft.Birthday)

	assert.Equal(t, conversation.ReplySaved, f.send("yes"))
	found, err := f.repo.FindContacts(context.Background(), "Jane")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "jane@x.com", found[0].Email)
}

func TestProcessor_NoneIsAnAnswer(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "add", "name": "Jane Roe", "phone": "555-123-4567", "email": "jane@x.com",
			"birthday": "1990-04-02", "family_members": "None", "description": "works at Acme"}`)

	reply := f.send("Add contact Jane Roe, phone 555-123-4567, email jane@x.com, born 1990-04-02, no family, works at Acme")

	assert.Contains(t, reply, "Please confirm the contact:")
	s := f.session(t)
	require.NotNil(t, s.Flow)
	assert.Equal(t, model.PhaseAwaitingConfirmation, s.Flow.Phase)
	assert.Equal(t, "None", s.Flow.Draft.FamilyMembers)
}

func TestProcessor_YesWithoutFlow(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, ReplyNothingConfirm, f.send("yes"))
	assert.Empty(t, f.oracle.Calls(""))
	assert.Zero(t, f.sessions.Len())
}

func TestProcessor_FindListsAmbiguousContacts(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Jon Lee")
	f.addContact(t, "Jonathan Lee")
	f.oracle.
		On("classify", "query_contacts").
		On("extract_contact_name", `{"name": "Jon"}`)

	reply := f.send("find Jon")

	assert.Contains(t, reply, "Jon Lee")
	assert.Contains(t, reply, "Jonathan Lee")
	assert.Zero(t, f.repo.finds.Load())
}

func TestProcessor_QueryForUnknownContactSkipsInteractions(t *testing.T) {
	f := newFixture(t)
	f.oracle.Fail("plan_query", errors.New("timeout"))

	reply := f.send("Show me the last 3 times I spoke with Xander")

	assert.Equal(t, "No contacts found matching Xander.", reply)
	assert.Zero(t, f.repo.finds.Load())
	assert.Empty(t, f.oracle.Calls("extract_interaction"))

	found, err := f.repo.FindContacts(context.Background(), "Xander")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestProcessor_OpenFlowAbsorbsFollowUps(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "add", "name": "Sam Park"}`).
		On("classify", "unknown").
		On("extract_contact", `{"email": "sam@x.com"}`)

	first := f.send("Add Sam Park")
	assert.Contains(t, first, "Email address")

	second := f.send("sam@x.com")
	assert.Contains(t, second, "Missing:")
	assert.NotContains(t, second, "Email address")

	s := f.session(t)
	require.NotNil(t, s.Flow)
	assert.Equal(t, "Sam Park", s.Flow.Draft.Name)
	assert.Equal(t, "sam@x.com", s.Flow.Draft.Email)
}

func TestProcessor_FixReroutesLastMessage(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Jane Roe")
	f.oracle.
		On("classify", "unknown").
		On("extract_contact", `{"action": "update", "name": "Jane Roe", "description": "moved to Boston"}`)

	assert.Equal(t, ReplyUnknown, f.send("Jane Roe moved to Boston"))
	require.NotNil(t, f.session(t).Last)

	reply := f.send("FIX: contact")
	assert.Contains(t, reply, "Contact 'Jane Roe' updated successfully")

	recs, err := f.repo.RecentCorrections(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.LabelUnknown, recs[0].OriginalLabel)
	assert.Equal(t, model.LabelContactsChange, recs[0].CorrectLabel)
	assert.Equal(t, "Jane Roe moved to Boston", recs[0].Message)

	found, err := f.repo.FindContacts(context.Background(), "Jane Roe")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "moved to Boston", found[0].Description)

	assert.Equal(t, ReplyNothingToFix, f.send("FIX: contact"))
}

func TestProcessor_FixAwayFromContactDropsFlow(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "add", "name": "Sam"}`).
		On("extract_interaction", `{"contact_name": "Sam", "note": "dinner at Joe's"}`)

	assert.Contains(t, f.send("Dinner at Joe's w/ Sam"), "Missing:")
	require.NotNil(t, f.session(t).Flow)

	reply := f.send("FIX: interaction")

	assert.Contains(t, reply, "Interaction saved under Sam!")
	_, err := f.sessions.Load(context.Background(), sender)
	assert.ErrorIs(t, err, conversation.ErrNoSession)
}

func TestProcessor_FixRestoresFlowBeforeAbsorbedMessage(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "add", "name": "Sam Park"}`).
		On("classify", "unknown").
		On("extract_contact", `{"name": "Tim", "description": "lunch at Joe's"}`).
		On("extract_interaction", `{"contact_name": "Tim", "note": "lunch at Joe's"}`)

	f.send("Add Sam Park")
	f.send("Lunch at Joe's with Tim")
	require.Equal(t, "lunch at Joe's", f.session(t).Flow.Draft.Description)

	assert.Contains(t, f.send("FIX: interaction"), "Interaction saved under Tim!")

	s := f.session(t)
	require.NotNil(t, s.Flow)
	assert.Equal(t, "Sam Park", s.Flow.Draft.Name)
	assert.Empty(t, s.Flow.Draft.Description)
	assert.Equal(t, model.PhaseCollecting, s.Flow.Phase)

	recs, err := f.repo.RecentCorrections(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.LabelContactsChange, recs[0].OriginalLabel)
	assert.Equal(t, model.LabelInteraction, recs[0].CorrectLabel)
}

func TestProcessor_FixRejectsUnknownTarget(t *testing.T) {
	f := newFixture(t)

	reply := f.send("FIX: banana")

	assert.Contains(t, reply, "FIX:")
	assert.Empty(t, f.oracle.Calls(""))
}

func TestProcessor_CommitFailureKeepsFlow(t *testing.T) {
	f := newFixture(t)
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"name": "Ann Bo", "phone": "5551112222", "email": "ann@x.com",
			"birthday": "1985-01-01", "family_members": "two kids", "description": "neighbour"}`)
	require.Contains(t, f.send("Add Ann Bo ..."), "Please confirm")

	f.repo.insertFail = errors.New("disk full")
	assert.Equal(t, "Error saving contact: disk full", f.send("yes"))

	s := f.session(t)
	require.NotNil(t, s.Flow)
	assert.Equal(t, model.PhaseAwaitingConfirmation, s.Flow.Phase)

	f.repo.insertFail = nil
	assert.Equal(t, conversation.ReplySaved, f.send("y"))
	assert.Nil(t, f.session(t).Flow)
}

func TestProcessor_InteractionAmbiguityDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Jon Lee")
	f.addContact(t, "Amy Lee")
	f.oracle.On("extract_interaction", `{"contact_name": "Lee", "note": "coffee"}`)

	reply := f.send("Had coffee with Lee")

	assert.Contains(t, reply, "Found multiple contacts: Amy Lee, Jon Lee.")
	rows, err := f.repo.Memory.FindInteractions(context.Background(), model.InteractionFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.oracle.Calls("classify"))
}

func TestProcessor_AmbiguousUpdateAndDeleteDoNotWrite(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Jon Lee")
	f.addContact(t, "Jonathan Lee")
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "update", "name": "Jon", "email": "jon@x.com"}`).
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "delete", "name": "Jon"}`)

	for _, msg := range []string{"update Jon's email to jon@x.com", "delete Jon"} {
		reply := f.send(msg)
		assert.Contains(t, reply, "Found multiple contacts: Jon Lee, Jonathan Lee.", msg)
	}

	assert.Zero(t, f.repo.updates.Load())
	assert.Zero(t, f.repo.deletes.Load())
	found, err := f.repo.FindContacts(context.Background(), "Jon")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Empty(t, found[0].Email)
}

func TestProcessor_UpdateAndDeleteFailuresAreReported(t *testing.T) {
	f := newFixture(t)
	f.addContact(t, "Jane Roe")
	f.repo.updateFail = errors.New("database is locked")
	f.repo.deleteFail = errors.New("database is locked")
	f.oracle.
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "update", "name": "Jane Roe", "phone": "5552223333"}`).
		On("classify", "contacts_change").
		On("extract_contact", `{"action": "delete", "name": "Jane Roe"}`)

	assert.Equal(t, "Error updating contact: database is locked", f.send("update Jane Roe's phone to 555 222 3333"))
	assert.Equal(t, "Error deleting contact: database is locked", f.send("delete Jane Roe"))
	assert.Equal(t, int32(1), f.repo.updates.Load())
	assert.Equal(t, int32(1), f.repo.deletes.Load())
}

func TestProcessor_InteractionCreatesMissingContact(t *testing.T) {
	f := newFixture(t)
	f.oracle.On("extract_interaction", `{"contact_name": "Maria Diaz", "note": "talked about the Lisbon trip"}`)

	reply := f.send("Spoke with Maria Diaz about the Lisbon trip")

	assert.Contains(t, reply, "Interaction saved under Maria Diaz!")
	found, err := f.repo.FindContacts(context.Background(), "Maria")
	require.NoError(t, err)
	require.Len(t, found, 1)

	rows, err := f.repo.Memory.FindInteractions(context.Background(), model.InteractionFilter{ContactIDs: []string{found[0].ID}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "talked about the Lisbon trip", rows[0].Note)
}

func TestProcessor_PanicBecomesApology(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.proc.RegisterHandler(model.LabelInteractionQuery, HandlerFunc(func(context.Context, *Turn) (string, error) {
		panic("boom")
	})))
	f.oracle.On("classify", "interaction_query")

	assert.Equal(t, ReplyError, f.send("what did I talk about with Bo?"))
}

func TestProcessor_HandlerErrorBecomesApology(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.proc.RegisterHandler(model.LabelQueryContacts, HandlerFunc(func(context.Context, *Turn) (string, error) {
		return "", errors.New("db down")
	})))
	f.oracle.On("classify", "query_contacts")

	assert.Equal(t, ReplyError, f.send("find Bo"))
}

func TestProcessor_RegisterHandlerValidates(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.proc.RegisterHandler(model.LabelInteraction, nil))
	assert.Error(t, f.proc.RegisterHandler(model.Label("gossip"), HandlerFunc(func(context.Context, *Turn) (string, error) {
		return "", nil
	})))
}

func TestProcessor_EmptyMessage(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, ReplyEmpty, f.send("   "))
	assert.Empty(t, f.oracle.Calls(""))
}

func TestProcessor_SerializesTurnsPerSender(t *testing.T) {
	f := newFixture(t)
	f.oracle.Always("classify", func(llm.Request) (string, error) { return "interaction_query", nil })

	var active, peak atomic.Int32
	require.NoError(t, f.proc.RegisterHandler(model.LabelInteractionQuery, HandlerFunc(func(context.Context, *Turn) (string, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", f.send("what happened?"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}
