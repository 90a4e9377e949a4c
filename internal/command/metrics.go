package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_commands_total",
		Help: "Commands executed by name and outcome.",
	}, []string{"command", "outcome"})
	mCommandDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitor_command_duration_seconds",
		Help:    "Command run time including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})
)
