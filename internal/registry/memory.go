package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// MemoryStore implements LocationRegistry, CursorStore and ProfileStore in
// process memory. It backs tests and the dev store backend.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[int]map[string]models.Location
	cursors    map[int]models.Cursor
	profiles   map[string]models.Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[int]map[string]models.Location),
		cursors:    make(map[int]models.Cursor),
		profiles:   make(map[string]models.Profile),
	}
}

// Count returns the number of locations in the partition.
func (s *MemoryStore) Count(_ context.Context, offset int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions[offset]), nil
}

// sortedTopics returns the partition's topics in ascending order.
// Callers must hold at least the read lock.
func (s *MemoryStore) sortedTopics(offset int) []string {
	part := s.partitions[offset]
	topics := make([]string, 0, len(part))
	for topicName := range part {
		topics = append(topics, topicName)
	}
	sort.Strings(topics)
	return topics
}

// Page returns up to limit locations in ascending topic order starting at
// (and including) startKey, or from the beginning when startKey is empty.
func (s *MemoryStore) Page(_ context.Context, offset int, startKey string, limit int) ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.partitions[offset]
	var out []models.Location
	for _, topicName := range s.sortedTopics(offset) {
		if startKey != "" && topicName < startKey {
			continue
		}
		out = append(out, part[topicName])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns every location in the partition in ascending topic order.
func (s *MemoryStore) All(_ context.Context, offset int) ([]models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.partitions[offset]
	out := make([]models.Location, 0, len(part))
	for _, topicName := range s.sortedTopics(offset) {
		out = append(out, part[topicName])
	}
	return out, nil
}

// Get returns the record for a topic, or ok=false if none exists.
func (s *MemoryStore) Get(_ context.Context, offset int, topicName string) (models.Location, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.partitions[offset][topicName]
	return loc, ok, nil
}

// Create writes a new record unless one already exists for the topic.
func (s *MemoryStore) Create(_ context.Context, offset int, loc models.Location) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[offset]
	if !ok {
		part = make(map[string]models.Location)
		s.partitions[offset] = part
	}
	if _, exists := part[loc.Topic]; exists {
		return false, nil
	}
	part[loc.Topic] = loc
	return true, nil
}

// ApplyRefresh merges a provider refresh into an existing record.
func (s *MemoryStore) ApplyRefresh(_ context.Context, offset int, topicName string, refresh models.ForecastRefresh) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	part := s.partitions[offset]
	loc, ok := part[topicName]
	if !ok {
		return fmt.Errorf("apply refresh for %s in partition %d: %w", topicName, offset, ErrNotFound)
	}
	mergeRefresh(&loc, refresh)
	part[topicName] = loc
	return nil
}

// GetCursor returns the partition's cursor, or ok=false when absent.
func (s *MemoryStore) GetCursor(_ context.Context, offset int) (models.Cursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.cursors[offset]
	return cur, ok, nil
}

// PutCursor persists the partition's cursor.
func (s *MemoryStore) PutCursor(_ context.Context, offset int, cur models.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[offset] = cur
	return nil
}

// DeleteCursor removes the partition's cursor if present.
func (s *MemoryStore) DeleteCursor(_ context.Context, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, offset)
	return nil
}

// Save stores a profile keyed by its id.
func (s *MemoryStore) Save(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

// GetProfile returns the profile for an id, or ok=false if none exists.
func (s *MemoryStore) GetProfile(_ context.Context, id string) (models.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok, nil
}

// Cursors adapts the store to the CursorStore interface.
func (s *MemoryStore) Cursors() CursorStore { return memoryCursors{s} }

// Profiles adapts the store to the ProfileStore interface.
func (s *MemoryStore) Profiles() ProfileStore { return memoryProfiles{s} }

type memoryCursors struct{ s *MemoryStore }

func (c memoryCursors) Get(ctx context.Context, offset int) (models.Cursor, bool, error) {
	return c.s.GetCursor(ctx, offset)
}
func (c memoryCursors) Put(ctx context.Context, offset int, cur models.Cursor) error {
	return c.s.PutCursor(ctx, offset, cur)
}
func (c memoryCursors) Delete(ctx context.Context, offset int) error {
	return c.s.DeleteCursor(ctx, offset)
}

type memoryProfiles struct{ s *MemoryStore }

func (p memoryProfiles) Save(ctx context.Context, prof models.Profile) error {
	return p.s.Save(ctx, prof)
}
func (p memoryProfiles) Get(ctx context.Context, id string) (models.Profile, bool, error) {
	return p.s.GetProfile(ctx, id)
}
