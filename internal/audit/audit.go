// Package audit records what the pipeline decided: per-tick snapshots of
// every notification candidate emitted for a partition, and the analytics
// events accepted by the HTTP surface. Records flow to a warehouse stream
// (Kafka) in production and to an in-memory recorder in tests.
package audit

import (
	"context"
	"time"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// Snapshot is one tick's worth of emitted candidates, keyed by submission
// time.
type Snapshot struct {
	SubmittedAt time.Time                      `json:"submittedAt"`
	Offset      int                            `json:"offset"`
	MessageType models.MessageType             `json:"messageType"`
	Candidates  []models.NotificationCandidate `json:"candidates"`
}

// Event is a single analytics record accepted by the HTTP surface.
type Event struct {
	Kind       string          `json:"kind"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    map[string]any  `json:"payload"`
}

// Sink receives audit records. Both methods must tolerate concurrent use.
type Sink interface {
	RecordSnapshot(ctx context.Context, snap Snapshot) error
	RecordEvent(ctx context.Context, event Event) error
}
