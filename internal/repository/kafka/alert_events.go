package kafka

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

// ChannelEvents is the alert channel name served by AlertEvents.
const ChannelEvents = "events"

// AlertEvents publishes dispatched alerts to a kafka topic, keyed by alert id.
type AlertEvents struct {
	p *Producer
}

func NewAlertEvents(p *Producer) *AlertEvents { return &AlertEvents{p: p} }

var _ monitor.AlertChannel = (*AlertEvents)(nil)

func (e *AlertEvents) Name() string { return ChannelEvents }

func (e *AlertEvents) Deliver(ctx context.Context, a monitor.Alert) error {
	msg, err := EncodeAlert(a)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, []byte(a.AlertID), msg)
}

func EncodeAlert(a monitor.Alert) (*structpb.Struct, error) {
	channels := make([]any, 0, len(a.ChannelsNotified))
	for _, c := range a.ChannelsNotified {
		channels = append(channels, c)
	}
	s, err := structpb.NewStruct(map[string]any{
		"alert_id":          a.AlertID,
		"service_name":      a.ServiceName,
		"severity":          a.Severity.String(),
		"message":           a.Message,
		"channels_notified": channels,
		"sent_at":           a.SentAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode alert event: %w", err)
	}
	return s, nil
}
