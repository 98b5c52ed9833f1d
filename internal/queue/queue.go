// Package queue is the topic-keyed staging area between threshold
// evaluation and dispatch. Existence of an entry is the delivery trigger:
// the producer creates entries, the consumer watches the change feed and
// deletes them after acting. The two handles are separate interfaces so the
// two-writer contract is enforced at the type level.
package queue

import (
	"context"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// Producer is the write-only handle held by the notification sync job.
type Producer interface {
	// Put stages an entry under its topic, overwriting any pending entry
	// for the same topic. Every Put emits the topic on the change feed.
	Put(ctx context.Context, entry models.QueueEntry) error
}

// Queue is the full handle, for wiring both sides to one backend.
type Queue interface {
	Producer
	Consumer
}

// Consumer is the read/delete handle held by the dispatcher. It is the only
// deleter of queue entries.
type Consumer interface {
	// Get returns the pending entry for a topic, or ok=false if none.
	Get(ctx context.Context, topicName string) (models.QueueEntry, bool, error)

	// Delete removes the pending entry for a topic. Deleting an absent
	// entry is a no-op.
	Delete(ctx context.Context, topicName string) error

	// Watch returns a channel of topic names, one per producer write. The
	// channel closes when ctx is cancelled. Deletes do not appear on the
	// feed, which is what lets the dispatcher delete without re-triggering
	// itself.
	Watch(ctx context.Context) (<-chan string, error)
}
