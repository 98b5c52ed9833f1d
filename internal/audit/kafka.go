package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSink publishes audit records as keyed JSON messages: snapshots keyed
// by submission time (epoch millis), analytics events keyed by kind.
type KafkaSink struct {
	snapshots *kafkago.Writer
	events    *kafkago.Writer
	logger    *zap.Logger
}

// NewKafkaSink creates writers for the snapshot and analytics topics.
func NewKafkaSink(brokers []string, snapshotTopic, eventTopic string, logger *zap.Logger) *KafkaSink {
	newWriter := func(topicName string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topicName,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return &KafkaSink{
		snapshots: newWriter(snapshotTopic),
		events:    newWriter(eventTopic),
		logger:    logger,
	}
}

// RecordSnapshot publishes one tick's candidate snapshot.
func (s *KafkaSink) RecordSnapshot(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(snap.SubmittedAt.UnixMilli(), 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "message_type", Value: []byte(snap.MessageType)},
			{Key: "offset", Value: []byte(strconv.Itoa(snap.Offset))},
		},
	}
	if err := s.snapshots.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// RecordEvent publishes one analytics event.
func (s *KafkaSink) RecordEvent(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafkago.Message{
		Key:   []byte(event.Kind),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "received_at", Value: []byte(event.ReceivedAt.Format(time.RFC3339))},
		},
	}
	if err := s.events.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close flushes and closes both writers.
func (s *KafkaSink) Close() error {
	errSnap := s.snapshots.Close()
	errEv := s.events.Close()
	if errSnap != nil {
		return errSnap
	}
	return errEv
}
