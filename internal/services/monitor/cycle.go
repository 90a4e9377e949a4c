package monitor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
	"github.com/NordCoder/opsmonitor/internal/obs"
)

const DefaultFanOut = 8

// Cycle probes a batch of endpoints concurrently and records every result.
type Cycle struct {
	Probe      *Probe
	Recorder   *Recorder
	Incidents  *IncidentTracker
	Transactor record.Transactor
	Clock      domain.Clock
	Log        *zap.Logger

	// Defaults are probed when a cycle is started with no endpoints.
	Defaults []string
	FanOut   int
}

func (c *Cycle) Run(ctx context.Context, endpoints []string, timeout time.Duration) (domain.HealthCheckResult, error) {
	if len(endpoints) == 0 {
		endpoints = c.Defaults
	}
	fanOut := c.FanOut
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}

	start := c.Clock.Now()
	ctx, span := otel.Tracer("monitor.cycle").Start(ctx, "monitor.health_check",
		trace.WithAttributes(
			attribute.Int("cycle.endpoints", len(endpoints)),
			attribute.Int64("cycle.timeout_ms", timeout.Milliseconds()),
		),
	)
	defer span.End()
	log := obs.WithTrace(ctx, orNop(c.Log))

	suffixes := collisionSuffixes(endpoints)
	results := make([]domain.EndpointResult, len(endpoints))
	recorded := make([]bool, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, url := range endpoints {
		g.Go(func() error {
			res := c.Probe.Check(gctx, url, timeout)
			results[i] = res
			if gctx.Err() != nil {
				// cancelled mid-probe: nothing is written for this endpoint
				return nil
			}
			if err := c.persist(gctx, res, suffixes[i]); err != nil {
				log.Warn("record probe result", zap.String("url", url), zap.Error(err))
				return nil
			}
			recorded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return domain.HealthCheckResult{}, fmt.Errorf("health check interrupted: %w", err)
	}

	out := domain.HealthCheckResult{
		TotalChecked: len(results),
		Results:      results,
		CheckedAt:    start.UTC(),
	}
	for i, r := range results {
		switch r.Status {
		case domain.StatusHealthy:
			out.Healthy++
		case domain.StatusDegraded:
			out.Degraded++
		case domain.StatusDown, domain.StatusTimeout:
			out.Down++
		case domain.StatusUnknown:
		}
		if !recorded[i] {
			out.RecordErrors++
		}
	}

	dur := c.Clock.Now().Sub(start)
	mCycleDur.Observe(dur.Seconds())
	span.SetAttributes(
		attribute.Int("cycle.healthy", out.Healthy),
		attribute.Int("cycle.degraded", out.Degraded),
		attribute.Int("cycle.down", out.Down),
	)
	log.Info("health check finished",
		zap.Int("total", out.TotalChecked),
		zap.Int("healthy", out.Healthy),
		zap.Int("degraded", out.Degraded),
		zap.Int("down", out.Down),
		zap.Int("record_errors", out.RecordErrors),
		zap.Duration("elapsed", dur),
	)
	return out, nil
}

// persist writes the health record and its incident together or not at all.
func (c *Cycle) persist(ctx context.Context, res domain.EndpointResult, suffix string) error {
	write := func(ctx context.Context) error {
		if err := c.Recorder.record(ctx, res, suffix); err != nil {
			mRecordFailures.WithLabelValues("health").Inc()
			return err
		}
		if _, err := c.Incidents.maybeRecord(ctx, res, suffix); err != nil {
			mRecordFailures.WithLabelValues("incident").Inc()
			return err
		}
		return nil
	}
	if c.Transactor == nil {
		return write(ctx)
	}
	return c.Transactor.WithTx(ctx, write)
}

// collisionSuffixes disambiguates endpoints of one batch that map to the same
// service, since their probes may share a timestamp.
func collisionSuffixes(endpoints []string) []string {
	counts := make(map[string]int, len(endpoints))
	for _, e := range endpoints {
		counts[ServiceName(e)]++
	}
	out := make([]string, len(endpoints))
	for i, e := range endpoints {
		if counts[ServiceName(e)] > 1 {
			out[i] = fmt.Sprintf("#%d", i)
		}
	}
	return out
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
