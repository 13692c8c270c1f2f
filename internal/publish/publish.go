package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tradingmodels/pkg/model"
)

// Publisher delivers a batch of stream points for a symbol
type Publisher interface {
	Publish(ctx context.Context, symbol string, points []model.StreamPoint) error
	Close() error
}

// Message is the payload written per stream point
type Message struct {
	Symbol string `json:"symbol"`
	model.StreamPoint
}

// messageWriter is the subset of kafka.Writer used here
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per stream point, keyed by symbol
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// KafkaConfig holds the producer settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewKafkaPublisher creates a synchronous kafka producer
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.Topic}, nil
}

// Publish writes points in one batch
func (p *KafkaPublisher) Publish(ctx context.Context, symbol string, points []model.StreamPoint) error {
	if len(points) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(points))
	for _, pt := range points {
		v, err := json.Marshal(Message{Symbol: symbol, StreamPoint: pt})
		if err != nil {
			return fmt.Errorf("marshal point: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(symbol),
			Value: v,
			Time:  pt.Time,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewlyAfter returns the points strictly after since, used to publish each point once
func NewlyAfter(points []model.StreamPoint, since time.Time) []model.StreamPoint {
	for i, p := range points {
		if p.Time.After(since) {
			return points[i:]
		}
	}
	return nil
}
