package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

type fakeMonitor struct {
	checkCalls int
	checkErrs  []error
	gotTimeout time.Duration
	diagErr    error
	alertCalls int
	alertErr   error
}

func (f *fakeMonitor) Run(ctx context.Context, endpoints []string, timeout time.Duration) (domain.HealthCheckResult, error) {
	f.checkCalls++
	f.gotTimeout = timeout
	if len(f.checkErrs) > 0 {
		err := f.checkErrs[0]
		f.checkErrs = f.checkErrs[1:]
		if err != nil {
			return domain.HealthCheckResult{}, err
		}
	}
	return domain.HealthCheckResult{TotalChecked: len(endpoints)}, nil
}

func (f *fakeMonitor) Diagnose(ctx context.Context, service string, lookback time.Duration) (domain.Diagnosis, error) {
	if f.diagErr != nil {
		return domain.Diagnosis{}, f.diagErr
	}
	return domain.Diagnosis{ServiceName: service}, nil
}

func (f *fakeMonitor) Dispatch(ctx context.Context, req domain.AlertRequest) (domain.AlertResult, error) {
	f.alertCalls++
	if f.alertErr != nil {
		return domain.AlertResult{}, f.alertErr
	}
	return domain.AlertResult{Alert: domain.Alert{AlertID: "a1", ServiceName: req.ServiceName, Severity: req.Severity, ChannelsNotified: []string{}}}, nil
}

func (f *fakeMonitor) Report(ctx context.Context, req domain.ReportRequest) (domain.StatusReport, error) {
	return domain.StatusReport{OverallUptimePercent: 100, Services: []domain.UptimeEntry{}}, nil
}

func newTestRegistry(t *testing.T, f *fakeMonitor) *Registry {
	t.Helper()
	r := NewRegistry(nil)
	require.NoError(t, RegisterMonitor(r, Monitor{Checks: f, Diagnoses: f, Alerts: f, Reports: f}))
	return r
}

func TestRegistry_Metadata(t *testing.T) {
	r := newTestRegistry(t, &fakeMonitor{})
	assert.Equal(t, []string{"alert", "diagnose", "health-check", "status-report"}, r.Names())

	s, ok := r.Lookup(HealthCheck)
	require.True(t, ok)
	assert.Equal(t, "monitor", s.Namespace)
	assert.Equal(t, 120*time.Second, s.Timeout)

	s, _ = r.Lookup(Alert)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, 0, s.Retries)

	assert.Error(t, r.Register(s), "duplicate names are rejected")
}

func TestRegistry_ExecuteHealthCheck(t *testing.T) {
	f := &fakeMonitor{}
	r := newTestRegistry(t, f)

	out, err := r.Execute(context.Background(), HealthCheck, []byte(`{"endpoints":["https://a.example.com"],"timeout_seconds":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, f.gotTimeout)

	var res domain.HealthCheckResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, 1, res.TotalChecked)
}

func TestRegistry_ValidationBeforeIO(t *testing.T) {
	f := &fakeMonitor{}
	r := newTestRegistry(t, f)

	_, err := r.Execute(context.Background(), HealthCheck, []byte(`{"endpoints":[""]}`))
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindValidation, ce.Kind)
	assert.Equal(t, "endpoints[0]", ce.Details["field"])
	assert.Zero(t, f.checkCalls)
}

func TestRegistry_RetriesPersistenceOnly(t *testing.T) {
	f := &fakeMonitor{checkErrs: []error{domain.Persistence("save", errors.New("conn reset")), nil}}
	r := newTestRegistry(t, f)

	_, err := r.Execute(context.Background(), HealthCheck, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.checkCalls)

	f = &fakeMonitor{alertErr: domain.Persistence("save alert", errors.New("conn reset"))}
	r = newTestRegistry(t, f)
	_, err = r.Execute(context.Background(), Alert, []byte(`{"service_name":"api","severity":"info"}`))
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindPersistence, ce.Kind)
	assert.Equal(t, "save alert", ce.Details["op"])
	assert.NotContains(t, ce.Message, "conn reset")
	assert.Equal(t, 1, f.alertCalls)
}

func TestRegistry_NotFoundAndUnknown(t *testing.T) {
	f := &fakeMonitor{diagErr: &domain.NotFoundError{Service: "api"}}
	r := newTestRegistry(t, f)

	_, err := r.Execute(context.Background(), Diagnose, []byte(`{"service_name":"api"}`))
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindNotFound, ce.Kind)
	assert.Equal(t, "no monitoring data found for service 'api'. Run health-check first", ce.Message)

	_, err = r.Execute(context.Background(), "reboot", nil)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindUnknownCommand, ce.Kind)
}

func TestAsError_HidesInternals(t *testing.T) {
	ce := AsError(errors.New("dial tcp 10.0.0.1:5432: refused"))
	assert.Equal(t, KindInternal, ce.Kind)
	assert.Equal(t, "internal error", ce.Message)

	assert.Equal(t, KindTimeout, AsError(context.DeadlineExceeded).Kind)
	assert.Nil(t, AsError(nil))
}
