package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// Constant waits the same delay between every attempt.
type Constant time.Duration

func (c Constant) Next(int) time.Duration { return time.Duration(c) }

// ExpoJitter doubles Base per attempt up to Max and spreads the result by
// ±Jitter (a fraction of the delay).
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(max(attempt, 0)))
	if b.Max > 0 {
		d = math.Min(d, float64(b.Max))
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

// Policy describes how Do repeats an operation. A nil Backoff retries
// immediately, a nil Retryable retries every error.
type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

const (
	outcomeOK        = "ok"
	outcomeExhausted = "exhausted"
	outcomeCancelled = "cancelled"
)

var (
	mAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Calls made inside retry.Do, first attempt included.",
	}, []string{"name"})
	mOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_outcomes_total",
		Help: "Finished retry.Do invocations by outcome.",
	}, []string{"name", "outcome"})
	mDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Wall time of retry.Do including backoff.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

func (p Policy) label() string {
	if p.Name == "" {
		return "default"
	}
	return p.Name
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do calls fn until it succeeds, the policy gives up or ctx ends. It
// returns the last error of fn, or ctx.Err() when cancelled mid-backoff.
func Do(ctx context.Context, fn func() error, p Policy) (err error) {
	name := p.label()
	attempts := max(p.Attempts, 1)
	span := trace.SpanFromContext(ctx)

	outcome := outcomeOK
	start := time.Now()
	defer func() {
		mOutcomes.WithLabelValues(name, outcome).Inc()
		mDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	for i := 0; ; i++ {
		mAttempts.WithLabelValues(name).Inc()
		if err = fn(); err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		if span.IsRecording() {
			span.AddEvent("retry.attempt", trace.WithAttributes(
				attribute.String("retry.name", name),
				attribute.Int("retry.attempt", i+1),
				attribute.String("error", err.Error()),
			))
		}
		if i+1 >= attempts || !p.retryable(err) {
			outcome = outcomeExhausted
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return err
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff.Next(i)
		}
		if werr := sleep(ctx, wait); werr != nil {
			outcome = outcomeCancelled
			return werr
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
