// Package notify evaluates refreshed location records against the
// notification threshold rules and stages queue entries for the topics
// that qualify.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/audit"
	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/observability"
	"github.com/taehoonk/forecast-push-service/internal/queue"
	"github.com/taehoonk/forecast-push-service/internal/registry"
	"github.com/taehoonk/forecast-push-service/internal/units"
)

// uvThreshold is exclusive: a UV index of exactly 5 does not qualify.
const uvThreshold = 5

// rainIcons are the provider icon values that count as precipitation.
var rainIcons = map[string]struct{}{
	"rain":  {},
	"snow":  {},
	"sleet": {},
}

// Evaluate applies one threshold rule to a location record. It returns the
// candidate and true when the record belongs to the partition, carries a
// complete forecast, and today's values cross the rule's threshold.
//
// A record belongs to the partition when either its exact offset or its
// rounded offset equals the partition offset, so half-hour timezones are
// picked up by the nearest whole-hour partition.
func Evaluate(loc models.Location, offset int, mt models.MessageType) (models.NotificationCandidate, bool) {
	if !mt.Valid() || !loc.Complete() {
		return models.NotificationCandidate{}, false
	}

	exactMatch := loc.TZOffset != nil && *loc.TZOffset == float64(offset)
	roundMatch := *loc.TZOffsetRound == offset
	if !exactMatch && !roundMatch {
		return models.NotificationCandidate{}, false
	}

	c := models.NotificationCandidate{
		Topic:           loc.Topic,
		MessageType:     mt,
		Country:         loc.Country,
		City:            loc.City,
		TZ:              loc.TZ,
		CurrentTime:     loc.CurrentTime,
		UVITime:         loc.UVITime[0],
		UVIMax:          loc.UVIMax[0],
		ForecastSummary: loc.ForecastSummary[0],
		Cloudiness:      loc.Cloudiness[0],
		Icon:            loc.Icon[0],
		TempMax:         loc.TempMax[0],
		TempMin:         loc.TempMin[0],
		UnitStr:         units.ConvertUnitByCountry(loc.Country),
	}
	if loc.TZOffset != nil {
		c.TZOffset = *loc.TZOffset
	}

	switch mt {
	case models.MessageTypeUV:
		if c.UVIMax <= uvThreshold {
			return models.NotificationCandidate{}, false
		}
	case models.MessageTypeRain:
		if _, ok := rainIcons[strings.ToLower(c.Icon)]; !ok {
			return models.NotificationCandidate{}, false
		}
		c.Icon = capitalize(c.Icon)
		c.TempMax = float64(units.ConvertTempByCountry(loc.Country, loc.TempMax[0]))
		c.TempMin = float64(units.ConvertTempByCountry(loc.Country, loc.TempMin[0]))
	}

	return c, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// NotificationSync walks one partition and stages a queue entry for every
// location whose forecast crosses a threshold rule.
type NotificationSync struct {
	locations registry.LocationRegistry
	producer  queue.Producer
	sink      audit.Sink
	clock     clockwork.Clock
	logger    *zap.Logger
}

func New(locations registry.LocationRegistry, producer queue.Producer, sink audit.Sink, clock clockwork.Clock, logger *zap.Logger) *NotificationSync {
	return &NotificationSync{
		locations: locations,
		producer:  producer,
		sink:      sink,
		clock:     clock,
		logger:    logger,
	}
}

// Run evaluates every record in the partition against one rule. A failed
// Put is logged and the walk continues so one bad topic cannot starve the
// rest, but any write failure fails the run once the walk is done. The
// full set of staged candidates is recorded as one audit snapshot.
func (n *NotificationSync) Run(ctx context.Context, offset int, mt models.MessageType) error {
	log := n.logger.With(
		zap.Int("offset", offset),
		zap.String("messageType", string(mt)))

	locs, err := n.locations.All(ctx, offset)
	if err != nil {
		return fmt.Errorf("list partition %d: %w", offset, err)
	}

	var staged []models.NotificationCandidate
	var putErr error
	for _, loc := range locs {
		c, ok := Evaluate(loc, offset, mt)
		if !ok {
			if mt == models.MessageTypeRain && loc.Complete() {
				log.Debug("no precipitation expected",
					zap.String("topic", loc.Topic),
					zap.String("icon", capitalize(loc.Icon[0])))
			}
			continue
		}

		if err := n.producer.Put(ctx, models.EntryFromCandidate(c, offset)); err != nil {
			log.Error("failed to stage queue entry",
				zap.String("topic", c.Topic),
				zap.Error(err))
			if putErr == nil {
				putErr = fmt.Errorf("stage entry for %s: %w", c.Topic, err)
			}
			continue
		}

		observability.QueueEntriesTotal.WithLabelValues(string(mt)).Inc()
		staged = append(staged, c)
	}

	log.Info("notification evaluation complete",
		zap.Int("evaluated", len(locs)),
		zap.Int("staged", len(staged)))

	if len(staged) == 0 {
		return putErr
	}

	snap := audit.Snapshot{
		SubmittedAt: n.clock.Now().UTC(),
		Offset:      offset,
		MessageType: mt,
		Candidates:  staged,
	}
	if err := n.sink.RecordSnapshot(ctx, snap); err != nil {
		// The entries are already staged; losing the audit record is
		// not worth failing the run over.
		log.Warn("failed to record audit snapshot", zap.Error(err))
	}
	return putErr
}
