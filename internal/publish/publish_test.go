package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"tradingmodels/pkg/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func points(n int) []model.StreamPoint {
	base := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	out := make([]model.StreamPoint, n)
	for i := range out {
		out[i] = model.StreamPoint{Time: base.Add(time.Duration(i) * time.Minute), Price: 100 + float64(i), Probability: 0.4 + 0.1*float64(i), Signal: i % 2}
	}
	return out
}

func TestKafkaPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "day_trading.stream"}

	if err := p.Publish(context.Background(), "AAPL", points(3)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}

	var msg Message
	if err := json.Unmarshal(w.msgs[2].Value, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Symbol != "AAPL" || msg.Price != 102 || string(w.msgs[2].Key) != "AAPL" {
		t.Errorf("unexpected message %+v key %s", msg, w.msgs[2].Key)
	}

	if err := p.Publish(context.Background(), "AAPL", nil); err != nil || len(w.msgs) != 3 {
		t.Error("empty batch should be a no-op")
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Error("expected writer closed")
	}
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	if _, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()
}

func TestPublishWrapsWriteError(t *testing.T) {
	down := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: down}, topic: "day_trading.stream"}

	err := p.Publish(context.Background(), "MSFT", points(2))
	if !errors.Is(err, down) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
	if !strings.Contains(err.Error(), "day_trading.stream") {
		t.Errorf("error should name the topic: %v", err)
	}
}

func TestNewlyAfter(t *testing.T) {
	pts := points(4)
	if got := NewlyAfter(pts, pts[1].Time); len(got) != 2 || !got[0].Time.Equal(pts[2].Time) {
		t.Errorf("unexpected points %v", got)
	}
	if got := NewlyAfter(pts, time.Time{}); len(got) != 4 {
		t.Errorf("zero time should keep all points, got %d", len(got))
	}
	if got := NewlyAfter(pts, pts[3].Time); len(got) != 0 {
		t.Errorf("expected nothing new, got %d", len(got))
	}
}
