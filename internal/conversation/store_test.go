package conversation

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"sms_crm_agent/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Load(ctx, "+1000")
	assert.ErrorIs(t, err, ErrNoSession)

	session := &model.Session{
		Sender: "+1000",
		Flow:   &model.ContactFlow{Draft: model.ContactDraft{Name: "Bob"}, Phase: model.PhaseCollecting},
		Last:   &model.Classification{Message: "Add Bob", Label: model.LabelContactsChange},
	}
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Load(ctx, "+1000")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Flow.Draft.Name)
	assert.Equal(t, model.LabelContactsChange, got.Last.Label)

	got.Flow.Draft.Name = "mutated"
	again, err := store.Load(ctx, "+1000")
	require.NoError(t, err)
	assert.Equal(t, "Bob", again.Flow.Draft.Name)

	assert.Error(t, store.Save(ctx, &model.Session{}))

	require.NoError(t, store.Delete(ctx, "+1000"))
	_, err = store.Load(ctx, "+1000")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore(time.Minute))
}

func TestMemoryStore_IdleExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(40 * time.Minute)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &model.Session{Sender: "a"}))

	now = now.Add(39 * time.Minute)
	_, err := store.Load(ctx, "a")
	require.NoError(t, err)

	now = now.Add(39 * time.Minute)
	_, err = store.Load(ctx, "a")
	require.NoError(t, err, "loading refreshes the idle window")

	now = now.Add(41 * time.Minute)
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, store.Len())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("CRM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("CRM_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	store := NewRedisStoreWithClient(redis.NewClient(opts), "crm:test:"+t.Name()+":", time.Minute)
	defer store.Close()
	testStore(t, store)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &model.Session{Sender: "ttl"}))
	ttl, err := store.TTL(ctx, "ttl")
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 5)
	require.NoError(t, store.Delete(ctx, "ttl"))
}

func TestNewRedisStore_RequiresURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "", "", 0)
	assert.Error(t, err)
}

func TestLocker_SerializesPerSender(t *testing.T) {
	locker := NewLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("+1555")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locker.Held())
}

func TestLocker_IndependentSenders(t *testing.T) {
	locker := NewLocker()
	unlockA := locker.Lock("a")

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	unlockA() // second call is a no-op
	assert.Zero(t, locker.Held())
}
