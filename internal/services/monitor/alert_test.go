package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

type panickyChannel struct{}

func (panickyChannel) Name() string { return "pager" }
func (panickyChannel) Deliver(context.Context, domain.Alert) error {
	panic("nil pager client")
}

func TestDispatch_BothChannelsFail(t *testing.T) {
	clock := newClock()
	store := newStore(clock)
	email := &fakeEmail{err: errors.New("smtp: 421 service not available")}
	chat := &fakeChat{err: errors.New("telegram: 502")}
	d := NewDispatcher(store, clock, nil,
		EmailChannel{Sender: email, To: "ops@example.com"},
		ChatChannel{Sender: chat, ChatID: "ops"},
	)

	res, err := d.Dispatch(context.Background(), domain.AlertRequest{
		ServiceName: "api", Severity: domain.SeverityCritical, Message: "5xx spike",
	})
	require.NoError(t, err)
	assert.Empty(t, res.ChannelsNotified)
	assert.NotNil(t, res.ChannelsNotified)
	assert.Len(t, res.AlertID, 8)
	require.Len(t, res.Outcomes, 2)
	for _, o := range res.Outcomes {
		assert.False(t, o.OK)
		assert.NotEmpty(t, o.Error)
	}

	got, err := d.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	assert.Equal(t, res.Alert.AlertID, got.AlertID)
	assert.Empty(t, got.ChannelsNotified)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
}

func TestDispatch_ChatOnlyNeverTouchesEmail(t *testing.T) {
	clock := newClock()
	email := &fakeEmail{}
	chat := &fakeChat{}
	d := NewDispatcher(newStore(clock), clock, nil,
		EmailChannel{Sender: email, To: "ops@example.com"},
		ChatChannel{Sender: chat, ChatID: "ops"},
	)

	res, err := d.Dispatch(context.Background(), domain.AlertRequest{
		ServiceName: "api", Severity: domain.SeverityWarning, Channels: []string{"chat"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"chat"}, res.ChannelsNotified)
	assert.Empty(t, email.sent)
	require.Len(t, chat.sent, 1)
	assert.Equal(t, "Markdown", chat.sent[0].format)
	assert.Contains(t, chat.sent[0].message, "*WARNING*: api")
	assert.Contains(t, chat.sent[0].message, res.AlertID)
}

func TestDispatch_DefaultsIgnoreUnknownAndIsolateFailures(t *testing.T) {
	clock := newClock()
	email := &fakeEmail{}
	chat := &fakeChat{err: errors.New("boom")}
	d := NewDispatcher(newStore(clock), clock, nil,
		EmailChannel{Sender: email, To: "ops@example.com"},
		ChatChannel{Sender: chat, ChatID: "ops"},
		panickyChannel{},
	)
	d.NewID = func() string { return "deadbeef" }

	res, err := d.Dispatch(context.Background(), domain.AlertRequest{
		ServiceName: "auth", Severity: domain.SeverityInfo,
		Channels: []string{"chat", "sms", "pager", "email", "email"},
	})
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", res.AlertID)
	assert.Equal(t, []string{"email"}, res.ChannelsNotified)
	assert.Len(t, res.Outcomes, 3, "unknown channels are skipped, duplicates collapse")
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ops@example.com", email.sent[0].to)
	assert.Equal(t, "[INFO] Alert: auth", email.sent[0].subject)
	assert.Contains(t, email.sent[0].html, "#3b82f6")
	assert.Contains(t, email.sent[0].html, "deadbeef")

	res, err = d.Dispatch(context.Background(), domain.AlertRequest{ServiceName: "auth", Severity: domain.SeverityInfo})
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, res.ChannelsNotified, "default channels are email and chat")
	assert.Len(t, chat.sent, 2)
}

func TestDispatch_PersistenceFailureIsTheOnlyError(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(brokenStore{}, clock, nil, ChatChannel{Sender: &fakeChat{}, ChatID: "ops"})

	_, err := d.Dispatch(context.Background(), domain.AlertRequest{ServiceName: "api", Severity: domain.SeverityInfo})
	var pe *domain.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestDispatch_AlertRetention(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(newStore(clock), clock, nil)

	res, err := d.Dispatch(context.Background(), domain.AlertRequest{ServiceName: "api", Severity: domain.SeverityInfo})
	require.NoError(t, err)

	clock.Advance(29 * 24 * time.Hour)
	_, err = d.Get(context.Background(), res.AlertID)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = d.Get(context.Background(), res.AlertID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAlertHTML_EscapesMessage(t *testing.T) {
	h := AlertHTML(domain.Alert{
		AlertID: "abc", ServiceName: "api", Severity: domain.SeverityCritical,
		Message: "<script>x</script>", SentAt: mustTime("2026-03-01T12:00:00Z"),
	})
	assert.Contains(t, h, "#dc2626")
	assert.Contains(t, h, "CRITICAL: api")
	assert.Contains(t, h, "&lt;script&gt;")
	assert.Contains(t, h, "2026-03-01T12:00:00Z")
}

func sequenceIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[min(i, len(ids)-1)]
		i++
		return id
	}
}

func TestDispatch_IDCollisionNeverOverwrites(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(newStore(clock), clock, nil)
	d.NewID = sequenceIDs("abcd1234", "abcd1234", "ef567890")
	ctx := context.Background()

	first, err := d.Dispatch(ctx, domain.AlertRequest{ServiceName: "api", Severity: domain.SeverityWarning, Message: "first"})
	require.NoError(t, err)
	second, err := d.Dispatch(ctx, domain.AlertRequest{ServiceName: "db", Severity: domain.SeverityCritical, Message: "second"})
	require.NoError(t, err)

	assert.Equal(t, "abcd1234", first.AlertID)
	assert.Equal(t, "ef567890", second.AlertID)

	got, err := d.Get(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Message)
	assert.Equal(t, "api", got.ServiceName)
}

func TestDispatch_ExpiredIDCanBeReused(t *testing.T) {
	clock := newClock()
	d := NewDispatcher(newStore(clock), clock, nil)
	d.NewID = sequenceIDs("abcd1234")
	ctx := context.Background()

	_, err := d.Dispatch(ctx, domain.AlertRequest{ServiceName: "api", Severity: domain.SeverityInfo})
	require.NoError(t, err)

	_, err = d.Dispatch(ctx, domain.AlertRequest{ServiceName: "api", Severity: domain.SeverityInfo})
	assert.ErrorIs(t, err, record.ErrExists)

	clock.Advance(domain.AlertRetention + time.Minute)
	res, err := d.Dispatch(ctx, domain.AlertRequest{ServiceName: "db", Severity: domain.SeverityInfo})
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", res.AlertID)
}
