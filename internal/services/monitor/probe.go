package monitor

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

const (
	DefaultProbeTimeout = 10 * time.Second
	timeoutMessage      = "Request timed out"
)

// Probe performs one health check against one endpoint. It never retries.
type Probe struct {
	HTTP  domain.HTTPProbe
	Clock domain.Clock
}

func NewProbe(http domain.HTTPProbe, clock domain.Clock) *Probe {
	return &Probe{HTTP: http, Clock: clock}
}

func (p *Probe) Check(ctx context.Context, url string, timeout time.Duration) domain.EndpointResult {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, span := otel.Tracer("monitor.probe").Start(ctx, "monitor.probe",
		trace.WithAttributes(attribute.String("probe.url", url)),
	)
	defer span.End()

	start := p.Clock.Now()
	resp, err := p.HTTP.Get(ctx, url, timeout)
	elapsed := p.Clock.Now().Sub(start)

	res := domain.EndpointResult{
		URL:            url,
		ResponseTimeMS: max(elapsed.Milliseconds(), 0),
		CheckedAt:      start.UTC(),
	}
	switch {
	case err != nil && isTimeout(err):
		res.Status = domain.StatusTimeout
		res.Error = timeoutMessage
	case err != nil:
		res.Status = domain.StatusDown
		res.Error = err.Error()
	default:
		code := resp.StatusCode
		if code == 0 {
			code = 200
		}
		res.StatusCode = &code
		res.Status = Classify(code, res.ResponseTimeMS)
	}

	span.SetAttributes(
		attribute.String("probe.status", res.Status.String()),
		attribute.Int64("probe.latency_ms", res.ResponseTimeMS),
	)
	mProbes.WithLabelValues(res.Status.String()).Inc()
	mProbeLatency.Observe(elapsed.Seconds())
	return res
}

// Classify maps a completed response to a status. Server errors win over latency.
func Classify(code int, elapsedMS int64) domain.Status {
	switch {
	case code >= 500:
		return domain.StatusDown
	case code >= 400:
		return domain.StatusDegraded
	case elapsedMS > domain.DegradedLatency.Milliseconds():
		return domain.StatusDegraded
	default:
		return domain.StatusHealthy
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
