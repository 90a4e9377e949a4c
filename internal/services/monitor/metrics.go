package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_probes_total", Help: "Endpoint probes by resulting status",
	}, []string{"status"})
	mProbeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_probe_latency_seconds",
		Help:    "Endpoint probe latency",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
	})
	mIncidents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_incidents_total", Help: "Incidents recorded by service",
	}, []string{"service"})
	mRecordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_record_failures_total", Help: "Health/incident writes that failed",
	}, []string{"kind"})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "monitor_cycle_duration_seconds", Help: "Health-check cycle duration",
		Buckets: prometheus.DefBuckets,
	})
	mAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_alert_deliveries_total", Help: "Alert deliveries by channel and outcome",
	}, []string{"channel", "outcome"})
	mFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_reasoner_fallbacks_total", Help: "Deterministic fallbacks used instead of reasoner output",
	}, []string{"op"})
	mPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitor_records_pruned_total", Help: "Expired records physically deleted",
	})
	mCheckRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_check_requests_total", Help: "Check requests consumed from kafka by outcome",
	}, []string{"outcome"})
)
