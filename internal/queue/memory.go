package queue

import (
	"context"
	"sync"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// MemoryQueue implements Producer and Consumer in process memory. The
// change feed is best-effort, like Redis pub/sub: a watcher that falls more
// than a buffer's worth of writes behind loses signals, not entries. Lost
// signals surface as entries that sit pending until the next write to the
// same topic, matching the edge-triggered contract.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]models.QueueEntry
	subs    []chan string
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[string]models.QueueEntry)}
}

// Put stages an entry and signals all watchers.
func (q *MemoryQueue) Put(_ context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.Topic] = entry
	for _, ch := range q.subs {
		select {
		case ch <- entry.Topic:
		default:
		}
	}
	return nil
}

// Get returns the pending entry for a topic, or ok=false if none.
func (q *MemoryQueue) Get(_ context.Context, topicName string) (models.QueueEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[topicName]
	return entry, ok, nil
}

// Delete removes the pending entry for a topic if present.
func (q *MemoryQueue) Delete(_ context.Context, topicName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, topicName)
	return nil
}

// Watch subscribes to the change feed until ctx is cancelled.
func (q *MemoryQueue) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 256)

	q.mu.Lock()
	q.subs = append(q.subs, ch)
	q.mu.Unlock()

	go func() {
		<-ctx.Done()
		q.mu.Lock()
		defer q.mu.Unlock()
		for i, sub := range q.subs {
			if sub == ch {
				q.subs = append(q.subs[:i], q.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// Len reports the number of pending entries, for tests.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
