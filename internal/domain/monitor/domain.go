package monitor

import (
	"time"
)

const (
	HealthRetention = 7 * 24 * time.Hour
	AlertRetention  = 30 * 24 * time.Hour

	// DegradedLatency is the latency above which a successful probe is degraded.
	DegradedLatency = 2000 * time.Millisecond

	MinProbeTimeout = 1 * time.Second
	MaxProbeTimeout = 60 * time.Second
)

// Record types carried in store metadata under the "type" key.
const (
	KindHealthCheck = "health_check"
	KindIncident    = "incident"
	KindAlert       = "alert"
)

type EndpointResult struct {
	URL            string    `json:"url"`
	Status         Status    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	StatusCode     *int      `json:"status_code"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

type Incident struct {
	Service        string    `json:"service"`
	URL            string    `json:"url"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type HealthCheckResult struct {
	TotalChecked int              `json:"total_checked"`
	Healthy      int              `json:"healthy"`
	Degraded     int              `json:"degraded"`
	Down         int              `json:"down"`
	Results      []EndpointResult `json:"results"`
	CheckedAt    time.Time        `json:"checked_at"`
	// RecordErrors counts results whose health/incident write failed.
	RecordErrors int `json:"record_errors,omitempty"`
}

type Event struct {
	Time   time.Time `json:"time"`
	Status Status    `json:"status"`
	Error  string    `json:"error"`
}

// DiagnosisSource tells whether the analysis came from the reasoning service.
type DiagnosisSource string

const (
	SourceReasoner DiagnosisSource = "reasoner"
	SourceFallback DiagnosisSource = "fallback"
)

type Diagnosis struct {
	ServiceName    string          `json:"service_name"`
	IncidentCount  int             `json:"incident_count"`
	Pattern        string          `json:"pattern"`
	RootCause      string          `json:"root_cause"`
	Recommendation string          `json:"recommendation"`
	Confidence     Confidence      `json:"confidence"`
	RecentEvents   []Event         `json:"recent_events"`
	Source         DiagnosisSource `json:"source"`
}

type Alert struct {
	AlertID          string    `json:"alert_id"`
	ServiceName      string    `json:"service_name"`
	Severity         Severity  `json:"severity"`
	Message          string    `json:"message"`
	ChannelsNotified []string  `json:"channels_notified"`
	SentAt           time.Time `json:"sent_at"`
}

const (
	ChannelEmail = "email"
	ChannelChat  = "chat"
)

// DefaultChannels are used when an alert request names none.
func DefaultChannels() []string { return []string{ChannelEmail, ChannelChat} }

type AlertRequest struct {
	ServiceName string
	Severity    Severity
	Message     string
	Channels    []string
}

// ChannelOutcome is the delivery result of one alert channel.
type ChannelOutcome struct {
	Channel string `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// AlertResult is the persisted alert plus the outcome of every attempted channel.
type AlertResult struct {
	Alert
	Outcomes []ChannelOutcome `json:"outcomes"`
}

type UptimeEntry struct {
	ServiceName   string  `json:"service_name"`
	TotalChecks   int     `json:"total_checks"`
	HealthyChecks int     `json:"healthy_checks"`
	UptimePercent float64 `json:"uptime_percent"`
	AvgResponseMS int64   `json:"avg_response_ms"`
	Incidents     int     `json:"incidents"`
}

type StatusReport struct {
	PeriodStart          time.Time       `json:"period_start"`
	PeriodEnd            time.Time       `json:"period_end"`
	TotalServices        int             `json:"total_services"`
	OverallUptimePercent float64         `json:"overall_uptime_percent"`
	Services             []UptimeEntry   `json:"services"`
	Narrative            string          `json:"narrative"`
	NarrativeSource      DiagnosisSource `json:"narrative_source"`
}

type ReportRequest struct {
	Start    *time.Time
	End      *time.Time
	Services []string
}
