package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
	"github.com/NordCoder/opsmonitor/internal/obs"
)

const (
	DefaultLookback = 60 * time.Minute

	recentEventsLimit  = 5
	healthEvidenceTail = 10
	historyQueryLimit  = 1000

	diagnosisSystem = "You are a senior SRE/DevOps engineer analyzing monitoring data. " +
		"Be specific and actionable in your diagnosis. When data is limited, " +
		"say so and lower your confidence. Always respond with valid JSON."
)

// Fallback values used when the reasoner is unavailable or its output is unusable.
var FallbackDiagnosis = struct {
	Pattern, RootCause, Recommendation string
}{
	Pattern:        "Unable to analyze - reasoning service unavailable",
	RootCause:      "Insufficient data for automated analysis",
	Recommendation: "Review logs manually",
}

type ReasonerSettings struct {
	DiagnosisTemperature float64
	ReportTemperature    float64
	ReportMaxTokens      int
}

// Diagnoser derives a root-cause analysis from the retained history of one service.
type Diagnoser struct {
	Store    record.Repo
	Reasoner domain.Reasoner
	Clock    domain.Clock
	Settings ReasonerSettings
	Log      *zap.Logger
}

type history struct {
	incidents []domain.Incident
	health    []domain.EndpointResult
}

func (d *Diagnoser) Diagnose(ctx context.Context, service string, lookback time.Duration) (domain.Diagnosis, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	ctx, span := otel.Tracer("monitor.diagnose").Start(ctx, "monitor.diagnose")
	defer span.End()
	span.SetAttributes(attribute.String("service", service))
	log := obs.WithTrace(ctx, orNop(d.Log)).With(zap.String("service", service))

	h, err := d.load(ctx, log, service, d.Clock.Now().Add(-lookback), 0)
	if err != nil {
		return domain.Diagnosis{}, err
	}
	if h.empty() {
		log.Debug("nothing inside lookback window, using newest retained history", zap.Duration("lookback", lookback))
		if h, err = d.load(ctx, log, service, time.Time{}, historyQueryLimit); err != nil {
			return domain.Diagnosis{}, err
		}
	}
	if h.empty() {
		return domain.Diagnosis{}, &domain.NotFoundError{Service: service}
	}

	out := domain.Diagnosis{
		ServiceName:   service,
		IncidentCount: len(h.incidents),
		RecentEvents:  recentEvents(h.incidents),
	}

	analysis, err := d.analyze(ctx, service, h)
	if err != nil {
		log.Warn("diagnosis fallback", zap.Error(err))
		mFallbacks.WithLabelValues("diagnose").Inc()
		out.Pattern = FallbackDiagnosis.Pattern
		out.RootCause = FallbackDiagnosis.RootCause
		out.Recommendation = FallbackDiagnosis.Recommendation
		out.Confidence = domain.ConfidenceLow
		out.Source = domain.SourceFallback
		return out, nil
	}

	out.Pattern = analysis.Pattern
	out.RootCause = analysis.RootCause
	out.Recommendation = analysis.Recommendation
	out.Confidence = analysis.Confidence
	out.Source = domain.SourceReasoner
	span.SetAttributes(attribute.String("diagnosis.confidence", out.Confidence.String()))
	return out, nil
}

func (h history) empty() bool { return len(h.incidents) == 0 && len(h.health) == 0 }

// load reads the service's records at or after since (zero means all
// retained), newest first and capped at limit per kind, and returns them in
// chronological order.
func (d *Diagnoser) load(ctx context.Context, log *zap.Logger, service string, since time.Time, limit int) (history, error) {
	var h history

	incs, err := d.Store.Query(ctx, serviceHistory(incidentPrefix, domain.KindIncident, service, since, limit))
	if err != nil {
		return h, domain.Persistence("query incidents", err)
	}
	for _, e := range incs {
		var inc domain.Incident
		if err := json.Unmarshal(e.Value, &inc); err != nil {
			log.Warn("skip malformed incident", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		h.incidents = append(h.incidents, inc)
	}

	checks, err := d.Store.Query(ctx, serviceHistory(healthPrefix, domain.KindHealthCheck, service, since, limit))
	if err != nil {
		return h, domain.Persistence("query health records", err)
	}
	for _, e := range checks {
		var res domain.EndpointResult
		if err := json.Unmarshal(e.Value, &res); err != nil {
			log.Warn("skip malformed health record", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		h.health = append(h.health, res)
	}

	sort.SliceStable(h.incidents, func(i, j int) bool { return h.incidents[i].OccurredAt.Before(h.incidents[j].OccurredAt) })
	sort.SliceStable(h.health, func(i, j int) bool { return h.health[i].CheckedAt.Before(h.health[j].CheckedAt) })
	return h, nil
}

func serviceHistory(prefix, kind, service string, since time.Time, limit int) record.Query {
	q := record.Query{
		Prefix:   prefix + service + ":",
		Metadata: map[string]string{"type": kind, "service": service},
		Desc:     true,
		Limit:    limit,
	}
	if !since.IsZero() {
		q.From = q.Prefix + since.UTC().Format(keyTime)
	}
	return q
}

// recentEvents lists the newest incidents first.
func recentEvents(incidents []domain.Incident) []domain.Event {
	n := min(len(incidents), recentEventsLimit)
	out := make([]domain.Event, 0, n)
	for i := len(incidents) - 1; i >= 0 && len(out) < n; i-- {
		inc := incidents[i]
		out = append(out, domain.Event{Time: inc.OccurredAt, Status: inc.Status, Error: inc.Error})
	}
	return out
}

type analysis struct {
	Pattern        string
	RootCause      string
	Recommendation string
	Confidence     domain.Confidence
}

type analysisJSON struct {
	Pattern        string `json:"pattern"`
	RootCause      string `json:"root_cause"`
	Recommendation string `json:"recommendation"`
	Confidence     string `json:"confidence"`
}

func (d *Diagnoser) analyze(ctx context.Context, service string, h history) (analysis, error) {
	if d.Reasoner == nil {
		return analysis{}, fmt.Errorf("no reasoner configured")
	}
	text, err := d.Reasoner.Complete(ctx, domain.CompletionRequest{
		Prompt:      diagnosisPrompt(service, h),
		System:      diagnosisSystem,
		Format:      domain.FormatJSON,
		Temperature: d.Settings.DiagnosisTemperature,
	})
	if err != nil {
		return analysis{}, err
	}
	return parseAnalysis(text)
}

// parseAnalysis fills missing fields with neutral defaults; an unknown
// confidence becomes low.
func parseAnalysis(text string) (analysis, error) {
	var raw analysisJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	a := analysis{
		Pattern:        orDefault(raw.Pattern, "Unknown"),
		RootCause:      orDefault(raw.RootCause, "Unknown"),
		Recommendation: orDefault(raw.Recommendation, "Review manually"),
	}
	c, err := domain.ParseConfidence(raw.Confidence)
	if err != nil {
		c = domain.ConfidenceLow
	}
	a.Confidence = c
	return a, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func diagnosisPrompt(service string, h history) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following monitoring data for service %q and provide a diagnosis.\n\n", service)

	fmt.Fprintf(&b, "Recent Incidents (%d total):\n", len(h.incidents))
	if len(h.incidents) == 0 {
		b.WriteString("No recent incidents.\n")
	}
	for _, inc := range h.incidents {
		errText := inc.Error
		if errText == "" {
			errText = "none"
		}
		fmt.Fprintf(&b, "- [%s] Status: %s, Error: %s, Response: %dms\n",
			inc.OccurredAt.Format(time.RFC3339), inc.Status, errText, inc.ResponseTimeMS)
	}

	fmt.Fprintf(&b, "\nRecent Health Checks (%d total):\n", len(h.health))
	if len(h.health) == 0 {
		b.WriteString("No health check data.\n")
	}
	tail := h.health
	if len(tail) > healthEvidenceTail {
		tail = tail[len(tail)-healthEvidenceTail:]
	}
	for _, r := range tail {
		fmt.Fprintf(&b, "- [%s] Status: %s, Response: %dms\n",
			r.CheckedAt.Format(time.RFC3339), r.Status, r.ResponseTimeMS)
	}

	b.WriteString(`
Provide your analysis as JSON:
{
    "pattern": "<describe the failure pattern, e.g. 'intermittent timeouts every 15 minutes'>",
    "root_cause": "<most likely root cause based on the data>",
    "recommendation": "<specific actionable steps to resolve>",
    "confidence": "low" | "medium" | "high"
}

Consider common root causes:
- DNS resolution failures
- Connection pool exhaustion
- Memory leaks (increasing response times)
- Deployment issues (sudden failures)
- Rate limiting (periodic failures)
- Database connection issues
- Certificate expiration`)
	return b.String()
}
