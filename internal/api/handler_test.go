package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/opsmonitor/internal/command"
	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

type stubMonitor struct{}

func (stubMonitor) Run(ctx context.Context, endpoints []string, timeout time.Duration) (domain.HealthCheckResult, error) {
	return domain.HealthCheckResult{TotalChecked: len(endpoints), Results: []domain.EndpointResult{}}, nil
}

func (stubMonitor) Diagnose(ctx context.Context, service string, lookback time.Duration) (domain.Diagnosis, error) {
	return domain.Diagnosis{}, &domain.NotFoundError{Service: service}
}

func (stubMonitor) Dispatch(ctx context.Context, req domain.AlertRequest) (domain.AlertResult, error) {
	return domain.AlertResult{}, domain.Persistence("save alert", errors.New("connection refused"))
}

func (stubMonitor) Report(ctx context.Context, req domain.ReportRequest) (domain.StatusReport, error) {
	return domain.StatusReport{}, nil
}

type stubAlerts map[string]domain.Alert

func (s stubAlerts) Get(ctx context.Context, id string) (domain.Alert, error) {
	a, ok := s[id]
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return a, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := command.NewRegistry(nil)
	m := stubMonitor{}
	require.NoError(t, command.RegisterMonitor(reg, command.Monitor{Checks: m, Diagnoses: m, Alerts: m, Reports: m}))
	alerts := stubAlerts{"abcd1234": {AlertID: "abcd1234", ServiceName: "api", Severity: domain.SeverityWarning, ChannelsNotified: []string{"chat"}}}
	srv := httptest.NewServer(New(reg, alerts, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestRunCommand_OK(t *testing.T) {
	srv := newServer(t)
	code, out := post(t, srv, "/v1/monitor/health-check", `{"endpoints":["https://a.example.com","https://b.example.com"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out["total_checked"])
}

func TestRunCommand_ErrorMapping(t *testing.T) {
	srv := newServer(t)

	cases := []struct {
		path, body string
		code       int
		kind       string
	}{
		{"/v1/monitor/health-check", `{"timeout_seconds":99}`, http.StatusBadRequest, "validation_error"},
		{"/v1/monitor/health-check", `{not json`, http.StatusBadRequest, "validation_error"},
		{"/v1/monitor/diagnose", `{"service_name":"api"}`, http.StatusNotFound, "not_found"},
		{"/v1/monitor/alert", `{"service_name":"api","severity":"info"}`, http.StatusServiceUnavailable, "persistence_error"},
		{"/v1/monitor/reboot", `{}`, http.StatusNotFound, "unknown_command"},
	}
	for _, tc := range cases {
		t.Run(tc.path+tc.body, func(t *testing.T) {
			code, out := post(t, srv, tc.path, tc.body)
			assert.Equal(t, tc.code, code)
			e, ok := out["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.kind, e["kind"])
		})
	}
}

func TestGetAlert(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/v1/alerts/abcd1234")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a domain.Alert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, "api", a.ServiceName)
	assert.Equal(t, domain.SeverityWarning, a.Severity)

	resp2, err := http.Get(srv.URL + "/v1/alerts/nope")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestListCommands(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/v1/commands")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"alert", "diagnose", "health-check", "status-report"}, out["commands"])
}
