// Package profile persists user profiles and registers the location a
// profile names so the crawl will start fetching forecasts for it.
package profile

import (
	"context"
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/registry"
	"github.com/taehoonk/forecast-push-service/internal/topic"
)

// Service stores profiles and derives location registrations from them.
type Service struct {
	profiles  registry.ProfileStore
	locations registry.LocationRegistry
	clock     clockwork.Clock
	logger    *zap.Logger
}

func NewService(profiles registry.ProfileStore, locations registry.LocationRegistry, clock clockwork.Clock, logger *zap.Logger) *Service {
	return &Service{
		profiles:  profiles,
		locations: locations,
		clock:     clock,
		logger:    logger,
	}
}

// Save persists a profile and, when it names a country and city, registers
// that location under the profile's rounded timezone offset. Registration
// only ever creates: an existing record keeps its coordinates and forecast
// even if the profile carries different ones.
func (s *Service) Save(ctx context.Context, p models.Profile) error {
	if err := s.profiles.Save(ctx, p); err != nil {
		return fmt.Errorf("save profile %s: %w", p.ID, err)
	}

	if p.Country == "" || p.City == "" {
		s.logger.Debug("profile has no location to register",
			zap.String("userID", p.ID))
		return nil
	}

	name := p.TopicLocation
	if name == "" {
		name = topic.CreateTopicName(p.Country, p.City)
	}

	offset := int(math.Round(p.TZOffset))
	tzOffset := p.TZOffset
	loc := models.Location{
		Topic:       name,
		Country:     p.Country,
		City:        p.City,
		Lat:         p.Lat,
		Lng:         p.Lng,
		TZOffset:    &tzOffset,
		LastUpdated: s.clock.Now().Unix(),
	}

	created, err := s.locations.Create(ctx, offset, loc)
	if err != nil {
		return fmt.Errorf("register location %s: %w", name, err)
	}
	if created {
		s.logger.Info("registered new location",
			zap.String("topic", name),
			zap.Int("offset", offset),
			zap.String("userID", p.ID))
	}
	return nil
}

// Get returns a stored profile.
func (s *Service) Get(ctx context.Context, id string) (models.Profile, bool, error) {
	return s.profiles.Get(ctx, id)
}
