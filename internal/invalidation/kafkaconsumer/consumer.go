// Package kafkaconsumer runs the consumer group that turns content-change
// events into content cache deletions.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/busantrip/map-explorer/internal/invalidation"
	mylog "github.com/busantrip/map-explorer/internal/logger"
	"github.com/busantrip/map-explorer/internal/observability"
)

// Invalidator drops the cached content lists for the named regions plus the
// unfiltered list.
type Invalidator interface {
	Invalidate(ctx context.Context, regions ...string) error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	inv    Invalidator
	zlog   *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, inv Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, inv: inv}
}

// Start joins the consumer group and blocks until ctx is cancelled.
// Consume errors are logged and retried; a bad message fails its claim and
// is redelivered (at-least-once, invalidation is idempotent).
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("kafkaconsumer: missing invalidator")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	zl := mylog.Build(mylog.Config{Level: "info", Component: "kafka_consumer"}, nil)
	c.zlog = &zl

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("content invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("content invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single content-change message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncKafkaConsumerError("decode")

		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")

		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		// a malformed event never becomes valid on redelivery; drop it
		observability.IncKafkaConsumerError("validate")
		c.logger.Warn("dropping invalid content-change event",
			"err", err, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	if err := c.inv.Invalidate(ctx, ev.Regions...); err != nil {
		observability.IncKafkaConsumerError("cache_del")
		observability.ObserveInvalidation(ev.Op, err)

		mylog.FromContext(ctx, c.zlog).Error().
			Str("kind", "cache_del").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int("regions", len(ev.Regions)).
			Msg("kafka error")

		return fmt.Errorf("invalidate: %w", err)
	}

	observability.ObserveInvalidation(ev.Op, nil)
	c.logger.Debug("invalidated content lists",
		"op", ev.Op, "regions", len(ev.Regions), "took", time.Since(start))

	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Str("op", ev.Op).
		Strs("regions", ev.Regions).
		Msg("invalidated content lists")

	return nil
}
