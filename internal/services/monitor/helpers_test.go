package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
	"github.com/NordCoder/opsmonitor/internal/repository/memory"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: mustTime("2026-03-01T12:00:00Z")} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeHTTP answers per URL. Latency is simulated by advancing the clock,
// which is only meaningful for sequential probes.
type fakeHTTP struct {
	clock     *fakeClock
	responses map[string]fakeResponse
	mu        sync.Mutex
	calls     []string
}

type fakeResponse struct {
	code    int
	latency time.Duration
	err     error
}

func (f *fakeHTTP) Get(ctx context.Context, url string, timeout time.Duration) (domain.ProbeResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	r, ok := f.responses[url]
	if !ok {
		return domain.ProbeResponse{}, errors.New("dial tcp: no such host")
	}
	if r.latency > 0 && f.clock != nil {
		f.clock.Advance(r.latency)
	}
	if r.err != nil {
		return domain.ProbeResponse{}, r.err
	}
	return domain.ProbeResponse{StatusCode: r.code}, nil
}

type fakeReasoner struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []domain.CompletionRequest
}

func (f *fakeReasoner) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

type sentMail struct{ to, subject, html string }

type fakeEmail struct {
	err  error
	sent []sentMail
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, html string) error {
	f.sent = append(f.sent, sentMail{to, subject, html})
	return f.err
}

type sentChat struct{ chatID, message, format string }

type fakeChat struct {
	err  error
	sent []sentChat
}

func (f *fakeChat) Send(ctx context.Context, chatID, message, format string) error {
	f.sent = append(f.sent, sentChat{chatID, message, format})
	return f.err
}

// brokenStore fails every operation.
type brokenStore struct{}

var errStoreDown = errors.New("connection refused")

func (brokenStore) Save(context.Context, string, []byte, record.SaveOptions) error {
	return errStoreDown
}
func (brokenStore) Get(context.Context, string) (record.Entry, error) {
	return record.Entry{}, errStoreDown
}
func (brokenStore) Query(context.Context, record.Query) ([]record.Entry, error) {
	return nil, errStoreDown
}
func (brokenStore) Ping(context.Context) error { return errStoreDown }

func newStore(clock *fakeClock) *memory.Store { return memory.NewStore(clock) }

func newCycle(store *memory.Store, http domain.HTTPProbe, clock *fakeClock) *Cycle {
	return &Cycle{
		Probe:      NewProbe(http, clock),
		Recorder:   NewRecorder(store),
		Incidents:  NewIncidentTracker(store),
		Transactor: store,
		Clock:      clock,
	}
}
