package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	mylog "github.com/mohammed-shakir/geodb-places/internal/logger"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

// Publisher sends a GroupRegistered event per registered group. It is a
// registry listener.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher connects a synchronous producer to brokers.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(prod, topic, logger), nil
}

func NewPublisherWithProducer(p sarama.SyncProducer, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{producer: p, topic: topic, logger: logger, now: time.Now}
}

func (p *Publisher) GroupAdded(ctx context.Context, g *places.PlaceGroup, refs []string) error {
	ev := GroupRegistered{
		Version:     Version,
		GroupID:     g.ID,
		Title:       g.Title,
		Features:    g.Len(),
		DatasetRefs: refs,
		CycleID:     mylog.CycleID(ctx),
		TS:          p.now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	part, off, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(g.ID),
		Value: sarama.ByteEncoder(b),
	})
	observability.IncEvent("out", err)
	if err != nil {
		return fmt.Errorf("publish %s event: %w", g.ID, err)
	}
	p.logger.DebugContext(ctx, "group event published",
		"group", g.ID, "topic", p.topic, "partition", part, "offset", off)
	return nil
}

func (p *Publisher) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
