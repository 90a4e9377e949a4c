package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapConsumer creates the consumed topic if needed and returns a
// consumer for it. A failed topic check is logged by EnsureTopic and does
// not stop the consumer; the reader retries until the topic appears.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, partitions int, logger *zap.Logger) *Consumer {
	_ = EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:          cfg.Topic,
		NumPartitions: partitions,
		MaxWait:       5 * time.Second,
	}, logger)
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	return NewConsumer(cfg)
}
