package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/push"
	"github.com/taehoonk/forecast-push-service/internal/queue"
)

type sentPush struct {
	topic string
	n     push.Notification
}

type fakePusher struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (p *fakePusher) SendToTopic(_ context.Context, topic string, n push.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentPush{topic: topic, n: n})
	return nil
}

func (p *fakePusher) sentPushes() []sentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentPush(nil), p.sent...)
}

func float(v float64) *float64 { return &v }

func uvEntry() models.QueueEntry {
	return models.QueueEntry{
		Topic:           "CA_Toronto",
		MessageType:     models.MessageTypeUV,
		Country:         "CA",
		City:            "Toronto",
		UVIMax:          float(7),
		UVITime:         1527863400, // 14:30 UTC
		Offset:          -4,
		ForecastSummary: "Clear.",
		Cloudiness:      0.1,
		Icon:            "clear-day",
		TempMax:         float(78),
		TempMin:         float(60),
		UnitStr:         "˚C",
	}
}

func rainEntry() models.QueueEntry {
	e := uvEntry()
	e.MessageType = models.MessageTypeRain
	e.Icon = "Rain"
	e.TempMax = float(12)
	e.TempMin = float(4)
	return e
}

func TestDispatchUVNotificationText(t *testing.T) {
	q := queue.NewMemoryQueue()
	pusher := &fakePusher{}
	d := New(q, pusher, zap.NewNop())
	ctx := context.Background()

	if err := q.Put(ctx, uvEntry()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Dispatch(ctx, "CA_Toronto"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sent := pusher.sentPushes()
	if len(sent) != 1 {
		t.Fatalf("sent = %d pushes, want 1", len(sent))
	}
	if sent[0].topic != "CA_Toronto" {
		t.Errorf("topic = %q", sent[0].topic)
	}
	if sent[0].n.Title != "High Risk of Sunburn Today." {
		t.Errorf("title = %q", sent[0].n.Title)
	}
	wantBody := "Take care starting at 10:30 AM in Toronto. Find out how long you can safely stay outside. Expand for more."
	if sent[0].n.Body != wantBody {
		t.Errorf("body = %q\nwant   %q", sent[0].n.Body, wantBody)
	}

	if _, ok, _ := q.Get(ctx, "CA_Toronto"); ok {
		t.Error("entry should be deleted after dispatch")
	}
}

func TestDispatchRainNotificationText(t *testing.T) {
	q := queue.NewMemoryQueue()
	pusher := &fakePusher{}
	d := New(q, pusher, zap.NewNop())
	ctx := context.Background()

	if err := q.Put(ctx, rainEntry()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Dispatch(ctx, "CA_Toronto"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sent := pusher.sentPushes()
	if len(sent) != 1 {
		t.Fatalf("sent = %d pushes, want 1", len(sent))
	}
	if sent[0].n.Title != "" {
		t.Errorf("rain notification has no title, got %q", sent[0].n.Title)
	}
	wantBody := "Stay dry today in Toronto. Rain is in the forecast. The temperature is between 4˚C and 12˚C. Expand for more."
	if sent[0].n.Body != wantBody {
		t.Errorf("body = %q\nwant   %q", sent[0].n.Body, wantBody)
	}
}

func TestDispatchMissingEntryIsNoOp(t *testing.T) {
	q := queue.NewMemoryQueue()
	pusher := &fakePusher{}
	d := New(q, pusher, zap.NewNop())

	if err := d.Dispatch(context.Background(), "CA_Nowhere"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(pusher.sentPushes()) != 0 {
		t.Error("nothing should be sent for a missing entry")
	}
}

func TestDispatchDiscardsMalformedEntries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.QueueEntry)
	}{
		{"unknown message type", func(e *models.QueueEntry) { e.MessageType = "hailForecast" }},
		{"missing uviMax", func(e *models.QueueEntry) { e.UVIMax = nil }},
		{"missing tempMax", func(e *models.QueueEntry) { e.TempMax = nil }},
		{"missing tempMin", func(e *models.QueueEntry) { e.TempMin = nil }},
		{"missing icon", func(e *models.QueueEntry) { e.Icon = "" }},
		{"missing city", func(e *models.QueueEntry) { e.City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.NewMemoryQueue()
			pusher := &fakePusher{}
			d := New(q, pusher, zap.NewNop())
			ctx := context.Background()

			e := uvEntry()
			tt.mutate(&e)
			if err := q.Put(ctx, e); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := d.Dispatch(ctx, e.Topic); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}

			if len(pusher.sentPushes()) != 0 {
				t.Error("malformed entry must not be sent")
			}
			if _, ok, _ := q.Get(ctx, e.Topic); ok {
				t.Error("malformed entry must still be deleted")
			}
		})
	}
}

func TestDispatchDeletesEntryEvenWhenSendFails(t *testing.T) {
	q := queue.NewMemoryQueue()
	pusher := &fakePusher{err: errors.New("push service down")}
	d := New(q, pusher, zap.NewNop())
	ctx := context.Background()

	if err := q.Put(ctx, uvEntry()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := d.Dispatch(ctx, "CA_Toronto"); err != nil {
		t.Fatalf("Dispatch should swallow send failures: %v", err)
	}
	if _, ok, _ := q.Get(ctx, "CA_Toronto"); ok {
		t.Error("entry must be deleted before the send is attempted")
	}
}

func TestRunDispatchesStagedTopics(t *testing.T) {
	q := queue.NewMemoryQueue()
	pusher := &fakePusher{}
	d := New(q, pusher, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	// Give the watcher a moment to subscribe before staging.
	time.Sleep(10 * time.Millisecond)
	if err := q.Put(ctx, uvEntry()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(pusher.sentPushes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dispatch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
