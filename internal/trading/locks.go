package trading

import (
	"context"
	"sync"
	"time"
)

// DefaultLockIdleTTL is how long an unused sell lock survives before the
// janitor drops it.
const DefaultLockIdleTTL = 2 * time.Hour

// keyedLocks hands out one mutex per key, created lazily and dropped after
// an idle period so long-running processes don't accumulate a lock per
// position ever traded.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	idleTTL time.Duration
	now     func() time.Time
}

type lockEntry struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

func newKeyedLocks(idleTTL time.Duration) *keyedLocks {
	return &keyedLocks{
		entries: make(map[string]*lockEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Lock blocks until the key's mutex is held and returns its unlock func.
// An entry is never swept while a holder or waiter has a reference to it.
func (l *keyedLocks) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		e.lastUsed = l.now()
		l.mu.Unlock()
	}
}

// sweep drops every unreferenced entry idle longer than the TTL.
func (l *keyedLocks) sweep() {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// janitor sweeps periodically until the context is cancelled.
func (l *keyedLocks) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *keyedLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
