package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	mylog "github.com/mohammed-shakir/geodb-places/internal/logger"
)

// Watched reports whether a relation "<database>_<collection>" feeds any
// configured place group.
type Watched func(name string) bool

// Trigger asks for a new update cycle.
type Trigger func(reason string)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer listens for CollectionChanged notices and triggers a reload when a
// watched collection changes. Malformed messages are logged and skipped.
type Consumer struct {
	cfg     ConsumerConfig
	logger  *slog.Logger
	watched Watched
	trigger Trigger
	dedupe  *seqDedupe
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger, watched Watched, trigger Trigger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		watched: watched,
		trigger: trigger,
		dedupe:  newSeqDedupe(1024),
	}
}

// Start consumes until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.trigger == nil || c.watched == nil {
		return errors.New("events consumer: missing trigger or watch func")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "events_consumer")
	handler := &groupHandler{process: c.ProcessOne}
	c.logger.InfoContext(ctx, "collection change consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "consumer error", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "collection change consumer shutting down")
			return nil
		}
	}
}

// ProcessOne handles a single message. Only infrastructure failures are
// returned, so a bad payload never blocks the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev CollectionChanged
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncEvent("in", err)
		c.logger.WarnContext(ctx, "undecodable change notice skipped",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		observability.IncEvent("in", err)
		c.logger.WarnContext(ctx, "invalid change notice skipped", "offset", msg.Offset, "err", err)
		return nil
	}
	observability.IncEvent("in", nil)

	name := ev.Name()
	if !c.dedupe.shouldApply(name, ev.Seq) {
		c.logger.DebugContext(ctx, "stale change notice", "collection", name, "seq", ev.Seq)
		return nil
	}
	if !c.watched(name) {
		return nil
	}
	c.trigger("collection " + name + " " + ev.Op)
	return nil
}

type seqDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newSeqDedupe(size int) *seqDedupe {
	c, _ := lru.New[string, uint64](size)
	return &seqDedupe{lru: c}
}

// shouldApply is true when seq is newer than the last one seen for key. A
// zero seq is always applied.
func (d *seqDedupe) shouldApply(key string, seq uint64) bool {
	if seq == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && seq <= last {
		return false
	}
	d.lru.Add(key, seq)
	return true
}
