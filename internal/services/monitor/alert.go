package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
	"github.com/NordCoder/opsmonitor/internal/obs"
)

const idAttempts = 5

// Dispatcher fans one alert out to independent channels and keeps an audit record.
type Dispatcher struct {
	Store    record.Repo
	Clock    domain.Clock
	Log      *zap.Logger
	channels map[string]domain.AlertChannel
	// NewID generates alert ids; defaults to the first 8 chars of a UUIDv4.
	NewID func() string
}

func NewDispatcher(store record.Repo, clock domain.Clock, log *zap.Logger, channels ...domain.AlertChannel) *Dispatcher {
	d := &Dispatcher{
		Store:    store,
		Clock:    clock,
		Log:      orNop(log).With(zap.String("component", "alert_dispatcher")),
		channels: make(map[string]domain.AlertChannel, len(channels)),
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for name := range d.channels {
		out = append(out, name)
	}
	return out
}

// Dispatch fails only when the alert record cannot be persisted. Channel
// failures are reported in the outcomes and leave channels_notified short.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.AlertRequest) (domain.AlertResult, error) {
	ctx, span := otel.Tracer("monitor.alert").Start(ctx, "monitor.alert")
	defer span.End()
	log := obs.WithTrace(ctx, orNop(d.Log))

	requested := req.Channels
	if requested == nil {
		requested = domain.DefaultChannels()
	}

	id, err := d.allocateID(ctx)
	if err != nil {
		return domain.AlertResult{}, err
	}
	a := domain.Alert{
		AlertID:          id,
		ServiceName:      req.ServiceName,
		Severity:         req.Severity,
		Message:          req.Message,
		ChannelsNotified: []string{},
		SentAt:           d.Clock.Now().UTC(),
	}
	span.SetAttributes(
		attribute.String("alert.id", a.AlertID),
		attribute.String("alert.service", a.ServiceName),
		attribute.String("alert.severity", a.Severity.String()),
	)
	log = log.With(zap.String("alert_id", a.AlertID), zap.String("service", a.ServiceName))

	var outcomes []domain.ChannelOutcome
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		ch, ok := d.channels[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true

		if err := deliver(ctx, ch, a); err != nil {
			log.Warn("alert channel failed", zap.String("channel", name), zap.Error(err))
			mAlerts.WithLabelValues(name, "error").Inc()
			outcomes = append(outcomes, domain.ChannelOutcome{Channel: name, Error: err.Error()})
			continue
		}
		mAlerts.WithLabelValues(name, "ok").Inc()
		outcomes = append(outcomes, domain.ChannelOutcome{Channel: name, OK: true})
		a.ChannelsNotified = append(a.ChannelsNotified, name)
	}

	b, err := json.Marshal(a)
	if err != nil {
		return domain.AlertResult{}, fmt.Errorf("encode alert: %w", err)
	}
	err = d.Store.Save(ctx, alertKey(a.AlertID), b, record.SaveOptions{
		TTL:    domain.AlertRetention,
		Create: true,
		Metadata: map[string]string{
			"type":     domain.KindAlert,
			"service":  a.ServiceName,
			"severity": a.Severity.String(),
		},
	})
	if errors.Is(err, record.ErrExists) {
		span.RecordError(err)
		return domain.AlertResult{}, fmt.Errorf("alert %s taken concurrently: %w", a.AlertID, err)
	}
	if err != nil {
		span.RecordError(err)
		return domain.AlertResult{}, domain.Persistence("save alert", err)
	}

	log.Info("alert dispatched", zap.Strings("channels_notified", a.ChannelsNotified))
	return domain.AlertResult{Alert: a, Outcomes: outcomes}, nil
}

// deliver turns a panicking channel into an ordinary failure.
func deliver(ctx context.Context, ch domain.AlertChannel, a domain.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return ch.Deliver(ctx, a)
}

// Get returns a previously dispatched alert that is still retained.
func (d *Dispatcher) Get(ctx context.Context, alertID string) (domain.Alert, error) {
	e, err := d.Store.Get(ctx, alertKey(alertID))
	if errors.Is(err, record.ErrNotFound) {
		return domain.Alert{}, fmt.Errorf("alert %s: %w", alertID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Alert{}, domain.Persistence("get alert", err)
	}
	var a domain.Alert
	if err := json.Unmarshal(e.Value, &a); err != nil {
		return domain.Alert{}, fmt.Errorf("decode alert %s: %w", alertID, err)
	}
	return a, nil
}

// allocateID picks an id that no retained alert uses.
func (d *Dispatcher) allocateID(ctx context.Context) (string, error) {
	for range idAttempts {
		id := d.newID()
		_, err := d.Store.Get(ctx, alertKey(id))
		if errors.Is(err, record.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", domain.Persistence("check alert id", err)
		}
		orNop(d.Log).Warn("alert id collision", zap.String("alert_id", id))
	}
	return "", fmt.Errorf("no free alert id after %d attempts: %w", idAttempts, record.ErrExists)
}

func (d *Dispatcher) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()[:8]
}

// EmailChannel sends the detailed HTML form of an alert.
type EmailChannel struct {
	Sender domain.EmailSender
	To     string
}

func (EmailChannel) Name() string { return domain.ChannelEmail }

func (c EmailChannel) Deliver(ctx context.Context, a domain.Alert) error {
	subject := fmt.Sprintf("[%s] Alert: %s", a.Severity.Label(), a.ServiceName)
	return c.Sender.Send(ctx, c.To, subject, AlertHTML(a))
}

// ChatChannel sends the terse Markdown form of an alert.
type ChatChannel struct {
	Sender domain.ChatSender
	ChatID string
}

func (ChatChannel) Name() string { return domain.ChannelChat }

func (c ChatChannel) Deliver(ctx context.Context, a domain.Alert) error {
	return c.Sender.Send(ctx, c.ChatID, AlertMarkdown(a), "Markdown")
}

func severityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "#dc2626"
	case domain.SeverityWarning:
		return "#f59e0b"
	case domain.SeverityInfo:
		return "#3b82f6"
	}
	return "#6b7280"
}

func AlertMarkdown(a domain.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*: %s\n", a.Severity.Label(), a.ServiceName)
	fmt.Fprintf(&b, "Time: `%s`\n", a.SentAt.Format(time.RFC3339))
	if a.Message != "" {
		fmt.Fprintf(&b, "Details: %s\n", a.Message)
	}
	fmt.Fprintf(&b, "Alert ID: `%s`", a.AlertID)
	return b.String()
}

func AlertHTML(a domain.Alert) string {
	row := func(k, v string) string {
		return `    <tr><td style="padding: 8px; border: 1px solid #eee;"><strong>` + k +
			`</strong></td><td style="padding: 8px; border: 1px solid #eee;">` + html.EscapeString(v) + "</td></tr>\n"
	}

	var b strings.Builder
	b.WriteString("<html>\n<body style=\"font-family: Arial, sans-serif; color: #333;\">\n")
	fmt.Fprintf(&b, "<h2 style=\"color: %s;\">%s: %s</h2>\n",
		severityColor(a.Severity), a.Severity.Label(), html.EscapeString(a.ServiceName))
	b.WriteString("<table style=\"border-collapse: collapse; width: 100%;\">\n")
	b.WriteString(row("Service", a.ServiceName))
	b.WriteString(row("Severity", a.Severity.String()))
	b.WriteString(row("Time", a.SentAt.Format(time.RFC3339)))
	b.WriteString(row("Alert ID", a.AlertID))
	b.WriteString("</table>\n")
	if a.Message != "" {
		fmt.Fprintf(&b, "<h3>Details</h3><p>%s</p>\n", html.EscapeString(a.Message))
	}
	b.WriteString("<hr style=\"border: none; border-top: 1px solid #eee; margin-top: 20px;\">\n")
	b.WriteString("<p style=\"font-size: 12px; color: #999;\">Sent by opsmonitor</p>\n</body>\n</html>")
	return b.String()
}
