package monitor

import (
	"context"
	"fmt"
	"math"
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
	reportSystem = "You are a DevOps operations analyst. Be concise and actionable."
	noDataText   = "No monitoring data available. Run health-check to start collecting data."
)

// Aggregator computes uptime statistics over retained health records.
type Aggregator struct {
	Store    record.Repo
	Reasoner domain.Reasoner
	Clock    domain.Clock
	Settings ReasonerSettings
	Log      *zap.Logger
}

type serviceStats struct {
	total, healthy int
	latencySum     int64
	latencyN       int64
	incidents      int
}

func (a *Aggregator) Report(ctx context.Context, req domain.ReportRequest) (domain.StatusReport, error) {
	ctx, span := otel.Tracer("monitor.report").Start(ctx, "monitor.status_report")
	defer span.End()
	log := obs.WithTrace(ctx, orNop(a.Log))

	now := a.Clock.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if req.Start != nil {
		start = req.Start.UTC()
	}
	end := now
	if req.End != nil {
		end = req.End.UTC()
	}
	inPeriod := func(t time.Time) bool { return !t.Before(start) && !t.After(end) }

	filter := make(map[string]bool, len(req.Services))
	for _, s := range req.Services {
		filter[s] = true
	}
	wanted := func(svc string) bool { return len(filter) == 0 || filter[svc] }

	checks, err := a.Store.Query(ctx, record.Query{
		Prefix:   healthPrefix,
		Metadata: map[string]string{"type": domain.KindHealthCheck},
	})
	if err != nil {
		return domain.StatusReport{}, domain.Persistence("query health records", err)
	}
	incidents, err := a.Store.Query(ctx, record.Query{
		Prefix:   incidentPrefix,
		Metadata: map[string]string{"type": domain.KindIncident},
	})
	if err != nil {
		return domain.StatusReport{}, domain.Persistence("query incidents", err)
	}

	stats := map[string]*serviceStats{}
	for _, e := range checks {
		svc := e.Metadata["service"]
		if !wanted(svc) {
			continue
		}
		var res domain.EndpointResult
		if err := json.Unmarshal(e.Value, &res); err != nil {
			log.Warn("skip malformed health record", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		if !inPeriod(res.CheckedAt) {
			continue
		}
		st := stats[svc]
		if st == nil {
			st = &serviceStats{}
			stats[svc] = st
		}
		st.total++
		if res.Status == domain.StatusHealthy {
			st.healthy++
		}
		if res.ResponseTimeMS > 0 {
			st.latencySum += res.ResponseTimeMS
			st.latencyN++
		}
	}
	for _, e := range incidents {
		svc := e.Metadata["service"]
		st := stats[svc]
		if st == nil {
			continue
		}
		var inc domain.Incident
		if err := json.Unmarshal(e.Value, &inc); err != nil {
			continue
		}
		if inPeriod(inc.OccurredAt) {
			st.incidents++
		}
	}

	names := make([]string, 0, len(stats))
	for svc := range stats {
		names = append(names, svc)
	}
	sort.Strings(names)

	rep := domain.StatusReport{
		PeriodStart: start,
		PeriodEnd:   end,
		Services:    make([]domain.UptimeEntry, 0, len(names)),
	}
	var totalChecks, totalHealthy int
	for _, svc := range names {
		st := stats[svc]
		entry := domain.UptimeEntry{
			ServiceName:   svc,
			TotalChecks:   st.total,
			HealthyChecks: st.healthy,
			UptimePercent: UptimePercent(st.healthy, st.total),
			Incidents:     st.incidents,
		}
		if st.latencyN > 0 {
			entry.AvgResponseMS = st.latencySum / st.latencyN
		}
		rep.Services = append(rep.Services, entry)
		totalChecks += st.total
		totalHealthy += st.healthy
	}
	rep.TotalServices = len(rep.Services)
	rep.OverallUptimePercent = UptimePercent(totalHealthy, totalChecks)

	narrative, err := a.narrate(ctx, rep)
	if err != nil {
		log.Warn("report narrative fallback", zap.Error(err))
		mFallbacks.WithLabelValues("status_report").Inc()
		rep.Narrative = FallbackNarrative(rep)
		rep.NarrativeSource = domain.SourceFallback
	} else {
		rep.Narrative = narrative
		rep.NarrativeSource = domain.SourceReasoner
	}

	span.SetAttributes(
		attribute.Int("report.services", rep.TotalServices),
		attribute.Float64("report.overall_uptime", rep.OverallUptimePercent),
	)
	return rep, nil
}

// UptimePercent is healthy/total as a percentage rounded to two decimals;
// 100 when there were no checks.
func UptimePercent(healthy, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return math.Round(float64(healthy)/float64(total)*100*100) / 100
}

func (a *Aggregator) narrate(ctx context.Context, rep domain.StatusReport) (string, error) {
	if a.Reasoner == nil {
		return "", fmt.Errorf("no reasoner configured")
	}
	text, err := a.Reasoner.Complete(ctx, domain.CompletionRequest{
		Prompt:      reportPrompt(rep),
		System:      reportSystem,
		Format:      domain.FormatText,
		Temperature: a.Settings.ReportTemperature,
		MaxTokens:   a.Settings.ReportMaxTokens,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty narrative")
	}
	return text, nil
}

func serviceSummary(rep domain.StatusReport) string {
	lines := make([]string, 0, len(rep.Services))
	for _, s := range rep.Services {
		lines = append(lines, fmt.Sprintf("- %s: %s%% uptime, %dms avg response, %d incidents",
			s.ServiceName, formatPercent(s.UptimePercent), s.AvgResponseMS, s.Incidents))
	}
	return strings.Join(lines, "\n")
}

func reportPrompt(rep domain.StatusReport) string {
	summary := serviceSummary(rep)
	if summary == "" {
		summary = "No monitoring data available."
	}
	return fmt.Sprintf(`Generate a brief operations report summary.

Period: %s to %s
Overall Uptime: %.1f%%

Per-Service Status:
%s

Provide 2-3 sentences covering:
1. Overall system health assessment
2. Any services needing attention
3. One actionable recommendation`,
		rep.PeriodStart.Format(time.RFC3339), rep.PeriodEnd.Format(time.RFC3339),
		rep.OverallUptimePercent, summary)
}

// FallbackNarrative names the service with the lowest uptime, or reports
// that there is no data.
func FallbackNarrative(rep domain.StatusReport) string {
	if len(rep.Services) == 0 {
		return noDataText
	}
	worst := rep.Services[0]
	for _, s := range rep.Services[1:] {
		if s.UptimePercent < worst.UptimePercent {
			worst = s
		}
	}
	return fmt.Sprintf("Overall uptime is %.1f%%. %s has the lowest uptime at %s%% with %d incidents. "+
		"Review incident logs for this service.",
		rep.OverallUptimePercent, worst.ServiceName, formatPercent(worst.UptimePercent), worst.Incidents)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%g", p)
}
