package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sms_crm_agent/internal/model"
)

// ErrNoSession is returned when a sender has no live session.
var ErrNoSession = errors.New("session not found")

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 40 * time.Minute

// Store keeps per-sender sessions between turns. Loading and saving both
// refresh the idle TTL.
type Store interface {
	Load(ctx context.Context, sender string) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, sender string) error
}

// MemoryStore is an in-process Store with idle expiry.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	ttl      time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose sessions expire ttl after their last use.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, sender string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sender]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, sender)
	}
	if m.now().Sub(session.UpdatedAt) > m.ttl {
		delete(m.sessions, sender)
		return nil, fmt.Errorf("%w: %s expired", ErrNoSession, sender)
	}
	session.UpdatedAt = m.now()
	return cloneSession(session), nil
}

func (m *MemoryStore) Save(_ context.Context, session *model.Session) error {
	if session == nil || session.Sender == "" {
		return fmt.Errorf("sender cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneSession(session)
	stored.UpdatedAt = m.now()
	m.sessions[session.Sender] = stored
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sender)
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func cloneSession(s *model.Session) *model.Session {
	out := *s
	if s.Flow != nil {
		flow := *s.Flow
		out.Flow = &flow
	}
	if s.Last != nil {
		last := *s.Last
		if last.FlowBefore != nil {
			before := *last.FlowBefore
			last.FlowBefore = &before
		}
		out.Last = &last
	}
	return &out
}
