package joblock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker with an in-process table. Held locks
// expire after their ttl so a leaked release cannot wedge a partition.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
}

// NewMemoryLocker creates an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time)}
}

// Acquire takes the (offset, kind) lock unless an unexpired holder exists.
func (l *MemoryLocker) Acquire(_ context.Context, offset int, kind string, ttl time.Duration) (func(), bool, error) {
	key := lockKey(offset, kind)

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return nil, false, nil
	}
	l.held[key] = time.Now().Add(ttl)

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}
