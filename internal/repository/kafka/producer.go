package kafka

import (
	"context"
	"fmt"
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
	"google.golang.org/protobuf/proto"
)

var mProduced = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_producer_messages_total",
	Help: "Messages written by topic and outcome.",
}, []string{"topic", "outcome"})

// Producer writes keyed messages to a single topic. Messages with the same
// key land on the same partition.
type Producer struct {
	w     *kafka.Writer
	topic string
	log   *zap.Logger
}

func NewProducer(brokers []string, topic string) *Producer {
	p := &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
			// EnsureTopic creates topics with the configured partitions
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
	return p.WithLogger(zap.L())
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "kafka.producer"), zap.String("topic", p.topic))
	return &cp
}

// PublishProto marshals m and writes it under key.
func (p *Producer) PublishProto(ctx context.Context, key []byte, m proto.Message) error {
	value, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("kafka: marshal %T: %w", m, err)
	}
	return p.Publish(ctx, key, value)
}

// Publish writes one message, propagating the trace context of ctx in its headers.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
			attribute.Int("messaging.message.body.size", len(value)),
		),
	)
	defer span.End()

	msg := kafka.Message{Key: key, Value: value}
	otel.GetTextMapPropagator().Inject(ctx, carrierFor(&msg))

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		mProduced.WithLabelValues(p.topic, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		p.log.Error("kafka write", zap.ByteString("key", key), zap.Error(err))
		return fmt.Errorf("kafka: write %s: %w", p.topic, err)
	}
	mProduced.WithLabelValues(p.topic, "ok").Inc()
	p.log.Debug("published", zap.ByteString("key", key), zap.Int("bytes", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
