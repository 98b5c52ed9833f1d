// Package dispatch drains the notification queue. It watches the queue's
// change feed and, for every staged topic, validates the entry, renders
// the notification text, removes the entry, and sends the push.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/observability"
	"github.com/taehoonk/forecast-push-service/internal/push"
	"github.com/taehoonk/forecast-push-service/internal/queue"
	"github.com/taehoonk/forecast-push-service/internal/units"
)

// Dispatcher consumes staged queue entries and turns them into pushes.
type Dispatcher struct {
	consumer queue.Consumer
	pusher   push.Pusher
	logger   *zap.Logger
}

func New(consumer queue.Consumer, pusher push.Pusher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		pusher:   pusher,
		logger:   logger,
	}
}

// Run blocks on the queue's change feed until ctx is cancelled, dispatching
// each staged topic as it arrives. Per-topic failures are logged and never
// stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	feed, err := d.consumer.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch queue: %w", err)
	}

	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return ctx.Err()
		case topicName, ok := <-feed:
			if !ok {
				d.logger.Info("queue feed closed")
				return nil
			}
			if err := d.Dispatch(ctx, topicName); err != nil {
				d.logger.Error("dispatch failed",
					zap.String("topic", topicName),
					zap.Error(err))
			}
		}
	}
}

// Dispatch handles one staged topic. The entry is removed before the push
// is attempted: a send failure never leaves the entry behind to double-fire
// on a later write to the same topic.
func (d *Dispatcher) Dispatch(ctx context.Context, topicName string) error {
	entry, ok, err := d.consumer.Get(ctx, topicName)
	if err != nil {
		return fmt.Errorf("read queue entry %s: %w", topicName, err)
	}
	if !ok {
		// Already consumed, likely by a concurrent dispatcher.
		observability.DispatchTotal.WithLabelValues("missing").Inc()
		return nil
	}

	n, ok := render(entry)
	if !ok {
		observability.DispatchTotal.WithLabelValues("discarded").Inc()
		d.logger.Warn("discarding malformed queue entry",
			zap.String("topic", topicName),
			zap.String("messageType", string(entry.MessageType)))
		return d.consumer.Delete(ctx, topicName)
	}

	if err := d.consumer.Delete(ctx, topicName); err != nil {
		return fmt.Errorf("delete queue entry %s: %w", topicName, err)
	}

	if err := d.pusher.SendToTopic(ctx, topicName, n); err != nil {
		// The entry is already gone. Delivery is at-most-once.
		d.logger.Error("push send failed",
			zap.String("topic", topicName),
			zap.Error(err))
		return nil
	}

	observability.DispatchTotal.WithLabelValues("sent").Inc()
	d.logger.Info("notification sent",
		zap.String("topic", topicName),
		zap.String("messageType", string(entry.MessageType)))
	return nil
}

// render builds the notification text for an entry. It returns false when
// the entry is missing any field the text depends on.
func render(entry models.QueueEntry) (push.Notification, bool) {
	if !entry.MessageType.Valid() {
		return push.Notification{}, false
	}
	if entry.UVIMax == nil || entry.TempMax == nil || entry.TempMin == nil || entry.Icon == "" || entry.City == "" {
		return push.Notification{}, false
	}

	switch entry.MessageType {
	case models.MessageTypeUV:
		start := units.EpochToClock(entry.UVITime, float64(entry.Offset))
		return push.Notification{
			Title: "High Risk of Sunburn Today.",
			Body: fmt.Sprintf(
				"Take care starting at %s in %s. Find out how long you can safely stay outside. Expand for more.",
				start, entry.City),
		}, true
	case models.MessageTypeRain:
		return push.Notification{
			Body: fmt.Sprintf(
				"Stay dry today in %s. %s is in the forecast. The temperature is between %d%s and %d%s. Expand for more.",
				entry.City, entry.Icon,
				int(*entry.TempMin), entry.UnitStr,
				int(*entry.TempMax), entry.UnitStr),
		}, true
	}
	return push.Notification{}, false
}
