package command

import (
	"context"
	"time"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

const (
	Namespace = "monitor"

	HealthCheck  = "health-check"
	Diagnose     = "diagnose"
	Alert        = "alert"
	StatusReport = "status-report"
)

type HealthChecker interface {
	Run(ctx context.Context, endpoints []string, timeout time.Duration) (domain.HealthCheckResult, error)
}

type Diagnoser interface {
	Diagnose(ctx context.Context, service string, lookback time.Duration) (domain.Diagnosis, error)
}

type Alerter interface {
	Dispatch(ctx context.Context, req domain.AlertRequest) (domain.AlertResult, error)
}

type Reporter interface {
	Report(ctx context.Context, req domain.ReportRequest) (domain.StatusReport, error)
}

// Monitor bundles the use cases behind the monitor namespace.
type Monitor struct {
	Checks    HealthChecker
	Diagnoses Diagnoser
	Alerts    Alerter
	Reports   Reporter
}

// MonitorSpecs returns the four monitor commands. Alerts are not retried so a
// store hiccup never sends the same notification twice.
func MonitorSpecs(m Monitor) []Spec {
	return []Spec{
		{
			Name: HealthCheck, Namespace: Namespace, Timeout: 120 * time.Second, Retries: 1, Queue: "monitor",
			Bind: func(raw []byte) (Run, error) {
				a, err := parseHealthCheck(raw)
				if err != nil {
					return nil, err
				}
				return func(ctx context.Context) (any, error) {
					return m.Checks.Run(ctx, a.Endpoints, time.Duration(a.TimeoutSeconds)*time.Second)
				}, nil
			},
		},
		{
			Name: Diagnose, Namespace: Namespace, Timeout: 60 * time.Second, Retries: 3, Queue: "monitor",
			Bind: func(raw []byte) (Run, error) {
				a, err := parseDiagnose(raw)
				if err != nil {
					return nil, err
				}
				return func(ctx context.Context) (any, error) {
					return m.Diagnoses.Diagnose(ctx, a.ServiceName, time.Duration(a.LookbackMinutes)*time.Minute)
				}, nil
			},
		},
		{
			Name: Alert, Namespace: Namespace, Timeout: 30 * time.Second, Retries: 0, Queue: "monitor",
			Bind: func(raw []byte) (Run, error) {
				req, err := parseAlert(raw)
				if err != nil {
					return nil, err
				}
				return func(ctx context.Context) (any, error) {
					return m.Alerts.Dispatch(ctx, req)
				}, nil
			},
		},
		{
			Name: StatusReport, Namespace: Namespace, Timeout: 60 * time.Second, Retries: 3, Queue: "monitor",
			Bind: func(raw []byte) (Run, error) {
				req, err := parseStatusReport(raw)
				if err != nil {
					return nil, err
				}
				return func(ctx context.Context) (any, error) {
					return m.Reports.Report(ctx, req)
				}, nil
			},
		},
	}
}

// RegisterMonitor adds the monitor commands to r.
func RegisterMonitor(r *Registry, m Monitor) error {
	for _, s := range MonitorSpecs(m) {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
