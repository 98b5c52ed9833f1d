// Package registry defines the durable stores the pipeline reads and
// writes: the partitioned location registry, the per-partition pagination
// cursor, and the user profile store. Implementations exist for an
// in-memory backend (tests, dev) and Redis (production).
package registry

import (
	"context"
	"errors"

	"github.com/taehoonk/forecast-push-service/internal/models"
)

// ErrNotFound is returned by Get-style operations when no record exists.
var ErrNotFound = errors.New("registry: not found")

// LocationRegistry stores location records partitioned by rounded timezone
// offset, with ascending-key paging. The weather sync job is the only
// writer of forecast fields; the profile trigger only ever creates records.
type LocationRegistry interface {
	// Count returns the number of locations in the partition.
	Count(ctx context.Context, offset int) (int, error)

	// Page returns up to limit locations in ascending topic order.
	// An empty startKey starts from the beginning of the partition;
	// otherwise the page starts at (and includes) startKey.
	Page(ctx context.Context, offset int, startKey string, limit int) ([]models.Location, error)

	// All returns every location in the partition in ascending topic order.
	All(ctx context.Context, offset int) ([]models.Location, error)

	// Get returns the record for a topic, or ok=false if none exists.
	Get(ctx context.Context, offset int, topicName string) (models.Location, bool, error)

	// Create writes a new record. It never overwrites: if a record already
	// exists for the topic it returns (false, nil) and leaves it untouched.
	Create(ctx context.Context, offset int, loc models.Location) (bool, error)

	// ApplyRefresh merges a provider refresh into an existing record,
	// overwriting the five forecast slices and the freshness fields while
	// keeping identity fields intact.
	ApplyRefresh(ctx context.Context, offset int, topicName string, refresh models.ForecastRefresh) error
}

// CursorStore persists one pagination cursor per partition.
type CursorStore interface {
	Get(ctx context.Context, offset int) (models.Cursor, bool, error)
	Put(ctx context.Context, offset int, cur models.Cursor) error
	Delete(ctx context.Context, offset int) error
}

// ProfileStore persists user profiles keyed by user id.
type ProfileStore interface {
	Save(ctx context.Context, p models.Profile) error
	Get(ctx context.Context, id string) (models.Profile, bool, error)
}

// mergeRefresh applies a refresh to a record, shared by the backends.
func mergeRefresh(loc *models.Location, refresh models.ForecastRefresh) {
	tzOffset := refresh.TZOffset
	tzOffsetRound := refresh.TZOffsetRound
	loc.TZ = refresh.TZ
	loc.TZOffset = &tzOffset
	loc.TZOffsetRound = &tzOffsetRound
	loc.CurrentTime = refresh.CurrentTime
	loc.UVITime = append([]int64(nil), refresh.UVITime...)
	loc.UVIMax = append([]float64(nil), refresh.UVIMax...)
	loc.ForecastSummary = append([]string(nil), refresh.ForecastSummary...)
	loc.Cloudiness = append([]float64(nil), refresh.Cloudiness...)
	loc.Icon = append([]string(nil), refresh.Icon...)
	loc.TempMax = append([]float64(nil), refresh.TempMax...)
	loc.TempMin = append([]float64(nil), refresh.TempMin...)
}
