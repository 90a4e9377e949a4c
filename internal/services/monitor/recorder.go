package monitor

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder persists every probe result as a health record.
type Recorder struct {
	Store record.Repo
}

func NewRecorder(store record.Repo) *Recorder { return &Recorder{Store: store} }

func (r *Recorder) Record(ctx context.Context, res domain.EndpointResult) error {
	return r.record(ctx, res, "")
}

func (r *Recorder) record(ctx context.Context, res domain.EndpointResult, suffix string) error {
	svc := ServiceName(res.URL)
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode health record: %w", err)
	}
	err = r.Store.Save(ctx, healthKey(svc, res.CheckedAt, suffix), b, record.SaveOptions{
		TTL: domain.HealthRetention,
		Metadata: map[string]string{
			"type":    domain.KindHealthCheck,
			"service": svc,
			"status":  res.Status.String(),
		},
	})
	return domain.Persistence("save health record", err)
}

// IncidentTracker derives at most one incident per non-healthy probe result.
type IncidentTracker struct {
	Store record.Repo
}

func NewIncidentTracker(store record.Repo) *IncidentTracker { return &IncidentTracker{Store: store} }

// MaybeRecord reports whether an incident was written.
func (t *IncidentTracker) MaybeRecord(ctx context.Context, res domain.EndpointResult) (bool, error) {
	return t.maybeRecord(ctx, res, "")
}

func (t *IncidentTracker) maybeRecord(ctx context.Context, res domain.EndpointResult, suffix string) (bool, error) {
	if !res.Status.Unhealthy() {
		return false, nil
	}
	svc := ServiceName(res.URL)
	inc := domain.Incident{
		Service:        svc,
		URL:            res.URL,
		Status:         res.Status,
		Error:          res.Error,
		ResponseTimeMS: res.ResponseTimeMS,
		OccurredAt:     res.CheckedAt,
	}
	b, err := json.Marshal(inc)
	if err != nil {
		return false, fmt.Errorf("encode incident: %w", err)
	}
	err = t.Store.Save(ctx, incidentKey(svc, res.CheckedAt, suffix), b, record.SaveOptions{
		TTL:      domain.HealthRetention,
		Metadata: map[string]string{"type": domain.KindIncident, "service": svc},
	})
	if err != nil {
		return false, domain.Persistence("save incident", err)
	}
	mIncidents.WithLabelValues(svc).Inc()
	return true, nil
}
