// Package scheduler drives the pipeline's periodic jobs: the incremental
// forecast crawl on a fixed cadence, and the two daily threshold
// evaluations timed so each partition is evaluated at the same local hour.
// Every tick is serialized per (partition, job kind) through a lock, so
// multiple replicas never crawl the same partition concurrently.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/joblock"
	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/notify"
	"github.com/taehoonk/forecast-push-service/internal/observability"
	"github.com/taehoonk/forecast-push-service/internal/syncjob"
)

const (
	kindWeatherSync = "weatherSync"
	kindUVNotify    = "uvNotify"
	kindRainNotify  = "rainNotify"
)

// Config holds the schedule parameters.
type Config struct {
	// Offsets are the timezone-offset partitions to drive.
	Offsets []int
	// SyncInterval is the cadence of the incremental crawl per partition.
	SyncInterval time.Duration
	// NotifyLocalHour is the local wall-clock hour at which a partition's
	// threshold evaluations run.
	NotifyLocalHour int
	// LockTTL bounds how long a tick's lock survives a crashed worker.
	LockTTL time.Duration
	// JobTimeout bounds one tick of any job.
	JobTimeout time.Duration
}

// Scheduler owns the gocron instance and the jobs registered on it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	weather   *syncjob.WeatherSync
	notify    *notify.NotificationSync
	locker    joblock.Locker
	cfg       Config
	logger    *zap.Logger
}

func New(weather *syncjob.WeatherSync, notifier *notify.NotificationSync, locker joblock.Locker, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		weather:   weather,
		notify:    notifier,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers every partition's jobs and starts the scheduler in the
// background.
func (s *Scheduler) Start() error {
	if len(s.cfg.Offsets) == 0 {
		s.logger.Warn("no partitions configured; nothing to schedule")
		return nil
	}

	minutes := int(s.cfg.SyncInterval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	for _, offset := range s.cfg.Offsets {
		offset := offset

		if _, err := s.scheduler.Every(minutes).Minutes().Do(func() {
			s.runLocked(kindWeatherSync, offset, func(ctx context.Context) error {
				return s.weather.Run(ctx, offset)
			})
		}); err != nil {
			return fmt.Errorf("schedule %s for partition %d: %w", kindWeatherSync, offset, err)
		}

		at := NotifyTimeUTC(s.cfg.NotifyLocalHour, offset)
		if _, err := s.scheduler.Every(1).Day().At(at).Do(func() {
			s.runLocked(kindUVNotify, offset, func(ctx context.Context) error {
				return s.notify.Run(ctx, offset, models.MessageTypeUV)
			})
		}); err != nil {
			return fmt.Errorf("schedule %s for partition %d: %w", kindUVNotify, offset, err)
		}
		if _, err := s.scheduler.Every(1).Day().At(at).Do(func() {
			s.runLocked(kindRainNotify, offset, func(ctx context.Context) error {
				return s.notify.Run(ctx, offset, models.MessageTypeRain)
			})
		}); err != nil {
			return fmt.Errorf("schedule %s for partition %d: %w", kindRainNotify, offset, err)
		}
	}

	s.logger.Info("scheduler started",
		zap.Int("partitions", len(s.cfg.Offsets)),
		zap.Int("syncIntervalMinutes", minutes),
		zap.Int("notifyLocalHour", s.cfg.NotifyLocalHour))
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and blocks until running jobs finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runLocked executes one tick under the (partition, kind) lock, recording
// duration and outcome.
func (s *Scheduler) runLocked(kind string, offset int, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	release, ok, err := s.locker.Acquire(ctx, offset, kind, s.cfg.LockTTL)
	if err != nil {
		observability.JobRunsTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Error("job lock unavailable",
			zap.String("kind", kind),
			zap.Int("offset", offset),
			zap.Error(err))
		return
	}
	if !ok {
		observability.JobRunsTotal.WithLabelValues(kind, "locked").Inc()
		s.logger.Debug("tick already claimed by another worker",
			zap.String("kind", kind),
			zap.Int("offset", offset))
		return
	}
	defer release()

	start := time.Now()
	runErr := fn(ctx)
	observability.JobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if runErr != nil {
		observability.JobRunsTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Error("job tick failed",
			zap.String("kind", kind),
			zap.Int("offset", offset),
			zap.Error(runErr))
		return
	}
	observability.JobRunsTotal.WithLabelValues(kind, "ok").Inc()
}

// NotifyTimeUTC returns the "HH:MM" UTC wall-clock time at which a
// partition reaches the given local hour. A +13 partition wanting 11:00
// local runs at 22:00 UTC the previous day, which the daily schedule
// handles naturally.
func NotifyTimeUTC(localHour, offset int) string {
	h := (localHour - offset) % 24
	if h < 0 {
		h += 24
	}
	return fmt.Sprintf("%02d:00", h)
}
