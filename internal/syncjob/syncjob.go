// Package syncjob implements the incremental forecast crawl. Each run
// advances one partition's cursor by a single page: it fetches fresh
// forecasts for the locations on that page and persists them, then moves
// or clears the cursor so the next run picks up where this one stopped.
package syncjob

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/observability"
	"github.com/taehoonk/forecast-push-service/internal/provider"
	"github.com/taehoonk/forecast-push-service/internal/registry"
	"github.com/taehoonk/forecast-push-service/internal/topic"
)

// WeatherSync crawls one page of a partition per run.
type WeatherSync struct {
	locations registry.LocationRegistry
	cursors   registry.CursorStore
	forecasts provider.ForecastClient
	clock     clockwork.Clock
	logger    *zap.Logger
	pageSize  int
	workers   int
}

// New creates a WeatherSync. pageSize bounds how many locations one run
// touches and workers bounds concurrent provider calls within a page.
func New(locations registry.LocationRegistry, cursors registry.CursorStore, forecasts provider.ForecastClient, clock clockwork.Clock, logger *zap.Logger, pageSize, workers int) *WeatherSync {
	if pageSize <= 0 {
		pageSize = 50
	}
	if workers <= 0 {
		workers = 8
	}
	return &WeatherSync{
		locations: locations,
		cursors:   cursors,
		forecasts: forecasts,
		clock:     clock,
		logger:    logger,
		pageSize:  pageSize,
		workers:   workers,
	}
}

// Run processes the partition's next page. Provider failures for individual
// locations are logged and skipped; the location keeps its previous
// forecast until a later pass succeeds. A failed cursor or record write
// fails the run and leaves the cursor untouched, so the page is retried.
func (s *WeatherSync) Run(ctx context.Context, offset int) error {
	log := s.logger.With(zap.Int("offset", offset))

	total, err := s.locations.Count(ctx, offset)
	if err != nil {
		return fmt.Errorf("count partition %d: %w", offset, err)
	}
	if total == 0 {
		log.Debug("partition empty, nothing to sync")
		return nil
	}

	cur, hasCursor, err := s.cursors.Get(ctx, offset)
	if err != nil {
		return fmt.Errorf("read cursor for partition %d: %w", offset, err)
	}

	startKey := ""
	processed := 0
	if hasCursor {
		startKey = cur.LastKeyName
		processed = cur.OffsetCount
		total = cur.TotalCount
	}

	page, err := s.locations.Page(ctx, offset, startKey, s.pageSize)
	if err != nil {
		return fmt.Errorf("page partition %d: %w", offset, err)
	}
	observability.SyncPagesTotal.WithLabelValues(strconv.Itoa(offset)).Inc()

	if len(page) == 0 {
		// Cursor points past the end, e.g. after deletions mid-pass.
		if err := s.cursors.Delete(ctx, offset); err != nil {
			return fmt.Errorf("clear cursor for partition %d: %w", offset, err)
		}
		return nil
	}

	if err := s.refreshPage(ctx, offset, page, log); err != nil {
		return err
	}

	endToken := processed + s.pageSize
	if endToken >= total {
		if err := s.cursors.Delete(ctx, offset); err != nil {
			return fmt.Errorf("clear cursor for partition %d: %w", offset, err)
		}
		log.Info("completed full pass over partition",
			zap.Int("totalCount", total))
		return nil
	}

	next := models.Cursor{
		LastKeyName: page[len(page)-1].Topic,
		OffsetCount: endToken,
		TotalCount:  total,
	}
	if err := s.cursors.Put(ctx, offset, next); err != nil {
		return fmt.Errorf("advance cursor for partition %d: %w", offset, err)
	}

	log.Info("advanced sync cursor",
		zap.String("lastKeyName", next.LastKeyName),
		zap.Int("offsetCount", next.OffsetCount),
		zap.Int("totalCount", next.TotalCount))
	return nil
}

// refreshPage fans provider calls out over a bounded worker pool and
// persists each usable forecast. Only persistence errors propagate.
func (s *WeatherSync) refreshPage(ctx context.Context, offset int, page []models.Location, log *zap.Logger) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		writeErr error
	)
	sem := make(chan struct{}, s.workers)

	for _, loc := range page {
		if !s.needsRefresh(loc, offset, log) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(loc models.Location) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.refreshOne(ctx, offset, loc, log); err != nil {
				mu.Lock()
				if writeErr == nil {
					writeErr = err
				}
				mu.Unlock()
			}
		}(loc)
	}

	wg.Wait()
	return writeErr
}

// needsRefresh applies the per-location skip rules: malformed topic keys
// are ignored, records refreshed earlier on the same calendar day are
// still fresh, and records whose own offset belongs to another partition
// are left for that partition's crawl.
func (s *WeatherSync) needsRefresh(loc models.Location, offset int, log *zap.Logger) bool {
	if !topic.CheckTopicName(loc.Topic) {
		observability.SyncLocationsTotal.WithLabelValues("invalid_topic").Inc()
		log.Warn("skipping record with malformed topic key",
			zap.String("topic", loc.Topic))
		return false
	}

	if loc.TZOffset != nil && *loc.TZOffset != float64(offset) {
		observability.SyncLocationsTotal.WithLabelValues("offset_mismatch").Inc()
		return false
	}

	if loc.CurrentTime != 0 {
		last := time.Unix(loc.CurrentTime, 0).UTC()
		now := s.clock.Now().UTC()
		if last.Month() == now.Month() && last.Day() == now.Day() {
			observability.SyncLocationsTotal.WithLabelValues("fresh").Inc()
			return false
		}
	}

	return true
}

func (s *WeatherSync) refreshOne(ctx context.Context, offset int, loc models.Location, log *zap.Logger) error {
	fc, err := s.forecasts.GetForecast(ctx, loc.Lat, loc.Lng)
	if err != nil {
		observability.SyncLocationsTotal.WithLabelValues("provider_error").Inc()
		log.Warn("forecast fetch failed, keeping previous forecast",
			zap.String("topic", loc.Topic),
			zap.Error(err))
		return nil
	}

	if !fc.Usable() {
		observability.SyncLocationsTotal.WithLabelValues("malformed").Inc()
		log.Warn("forecast response unusable, keeping previous forecast",
			zap.String("topic", loc.Topic))
		return nil
	}

	if err := s.locations.ApplyRefresh(ctx, offset, loc.Topic, fc.Refresh()); err != nil {
		return fmt.Errorf("persist forecast for %s: %w", loc.Topic, err)
	}

	observability.SyncLocationsTotal.WithLabelValues("refreshed").Inc()
	log.Debug("refreshed forecast",
		zap.String("topic", loc.Topic),
		zap.Float64("uviMaxToday", fc.Daily[0].UVIndex))
	return nil
}
