package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, key, value []byte) error

var mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_consumer_messages_total",
	Help: "Messages handled by topic and outcome.",
}, []string{"topic", "outcome"})

const (
	minFetchBackoff = 200 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           time.Second,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	c := &Consumer{reader: r, cfg: cfg}
	c.log = c.componentLogger(cfg.Logger)
	return c
}

func (c *Consumer) componentLogger(l *zap.Logger) *zap.Logger {
	return l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = c.componentLogger(l)
	return &cp
}

// Consume fetches messages until ctx is done. Each message is committed after
// the handler returns, whatever the outcome: a check request that failed once
// is not replayed, the next scheduled cycle covers it.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	backoff := minFetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = minFetchBackoff

		c.handle(ctx, h, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("commit failed; will retry later", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, msg kafka.Message) {
	mctx := otel.GetTextMapPropagator().Extract(ctx, carrierFor(&msg))
	mctx, span := otel.Tracer("kafka.consumer").Start(mctx, "kafka.consume "+c.cfg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(c.cfg.Topic),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
	defer span.End()

	err := h(mctx, msg.Key, msg.Value)
	fields := []zap.Field{zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset)}
	switch {
	case err == nil:
		mConsumed.WithLabelValues(c.cfg.Topic, "ok").Inc()
	case errors.Is(err, ErrUndecodable):
		mConsumed.WithLabelValues(c.cfg.Topic, "undecodable").Inc()
		span.SetStatus(codes.Error, "undecodable")
		c.log.Warn("skip undecodable message", append(fields, zap.Error(err))...)
	default:
		mConsumed.WithLabelValues(c.cfg.Topic, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		c.log.Error("handler error", append(fields, zap.Error(err))...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
