package audit

import (
	"context"
	"sync"
)

// MemorySink collects records in memory, for tests and the dev backend.
type MemorySink struct {
	mu        sync.Mutex
	snapshots []Snapshot
	events    []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// RecordSnapshot appends a snapshot.
func (s *MemorySink) RecordSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

// RecordEvent appends an analytics event.
func (s *MemorySink) RecordEvent(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Snapshots returns a copy of the recorded snapshots.
func (s *MemorySink) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snapshots...)
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
