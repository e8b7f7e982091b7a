package conversation

import "sync"

// Locker serializes turns per sender. Entries are reference counted and
// removed once no turn holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*senderLock)}
}

// Lock blocks until sender is free and returns the matching unlock.
func (l *Locker) Lock(sender string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[sender]
	if !ok {
		sl = &senderLock{}
		l.locks[sender] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Unlock()
			l.mu.Lock()
			sl.refs--
			if sl.refs == 0 {
				delete(l.locks, sender)
			}
			l.mu.Unlock()
		})
	}
}

// Held reports how many senders currently have a lock entry.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
