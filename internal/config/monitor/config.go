package monitor_config

import (
	"time"

	"github.com/NordCoder/opsmonitor/internal/notifier"
	"github.com/NordCoder/opsmonitor/internal/obs"
	"github.com/NordCoder/opsmonitor/internal/reasoner"
	pg "github.com/NordCoder/opsmonitor/internal/repository/postgres"
	"github.com/NordCoder/opsmonitor/internal/services/monitor"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Output string `mapstructure:"output"`
}

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		Output: c.Log.Output,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (c *Config) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		Version:     c.App.Version,
		Env:         c.App.Env,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Store struct {
	Driver            string        `mapstructure:"driver"`
	DSN               string        `mapstructure:"dsn"`
	Path              string        `mapstructure:"path"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	ConnectAttempts   int           `mapstructure:"connect_attempts"`
}

func (c *Config) AsPostgresConfig() pg.Config {
	s := c.Store
	return pg.Config{
		URL:               s.DSN,
		AppName:           c.App.Name,
		ConnectAttempts:   s.ConnectAttempts,
		MaxConns:          s.MaxConns,
		MinConns:          s.MinConns,
		MaxConnLifetime:   s.MaxConnLifetime,
		MaxConnIdleTime:   s.MaxConnIdleTime,
		HealthCheckPeriod: s.HealthCheckPeriod,
		QueryTimeout:      s.QueryTimeout,
	}
}

type HTTPProbe struct {
	UserAgent       string `mapstructure:"user_agent"`
	FollowRedirects bool   `mapstructure:"follow_redirects"`
	VerifyTLS       bool   `mapstructure:"verify_tls"`
}

func (h *HTTPProbe) AsHTTPConfig() monitor.HTTPConfig {
	return monitor.HTTPConfig{
		UserAgent:       h.UserAgent,
		FollowRedirects: h.FollowRedirects,
		VerifyTLS:       h.VerifyTLS,
	}
}

type Monitor struct {
	DefaultEndpoints []string      `mapstructure:"default_endpoints"`
	FanOut           int           `mapstructure:"fan_out"`
	Interval         time.Duration `mapstructure:"interval"`
	TimeoutSeconds   int           `mapstructure:"timeout_seconds"`
	PruneEvery       time.Duration `mapstructure:"prune_every"`
}

type Reasoner struct {
	APIKey               string        `mapstructure:"api_key"`
	BaseURL              string        `mapstructure:"base_url"`
	Model                string        `mapstructure:"model"`
	MaxTokens            int           `mapstructure:"max_tokens"`
	Attempts             int           `mapstructure:"attempts"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	DiagnosisTemperature float64       `mapstructure:"diagnosis_temperature"`
	ReportTemperature    float64       `mapstructure:"report_temperature"`
	ReportMaxTokens      int           `mapstructure:"report_max_tokens"`
}

func (r *Reasoner) AsReasonerConfig() reasoner.Config {
	return reasoner.Config{
		APIKey:           r.APIKey,
		BaseURL:          r.BaseURL,
		Model:            r.Model,
		DefaultMaxTokens: r.MaxTokens,
		Attempts:         r.Attempts,
		CallTimeout:      r.CallTimeout,
	}
}

func (r *Reasoner) AsSettings() monitor.ReasonerSettings {
	return monitor.ReasonerSettings{
		DiagnosisTemperature: r.DiagnosisTemperature,
		ReportTemperature:    r.ReportTemperature,
		ReportMaxTokens:      r.ReportMaxTokens,
	}
}

type SMTP struct {
	Enable     bool          `mapstructure:"enable"`
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	To         string        `mapstructure:"to"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	SkipVerify bool          `mapstructure:"skip_verify"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

func (s *SMTP) AsSMTPConfig() notifier.SMTPConfig {
	return notifier.SMTPConfig{
		Addr:       s.Addr,
		User:       s.User,
		Password:   s.Password,
		From:       s.From,
		UseTLS:     s.UseTLS,
		SkipVerify: s.SkipVerify,
		Timeout:    s.Timeout,
		SubjPrefix: s.SubjPrefix,
	}
}

type Telegram struct {
	Enable  bool          `mapstructure:"enable"`
	APIBase string        `mapstructure:"api_base"`
	Token   string        `mapstructure:"token"`
	ChatID  string        `mapstructure:"chat_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (t *Telegram) AsTelegramConfig() notifier.TelegramConfig {
	return notifier.TelegramConfig{APIBase: t.APIBase, Token: t.Token, Timeout: t.Timeout}
}

type KafkaOut struct {
	Enable     bool     `mapstructure:"enable"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int      `mapstructure:"partitions"`
}

type KafkaIn struct {
	Enable     bool     `mapstructure:"enable"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Config struct {
	App      App       `mapstructure:"app"`
	Log      Log       `mapstructure:"log"`
	OTEL     OTEL      `mapstructure:"otel"`
	Store    Store     `mapstructure:"store"`
	HTTP     HTTPProbe `mapstructure:"http"`
	Monitor  Monitor   `mapstructure:"monitor"`
	Reasoner Reasoner  `mapstructure:"reasoner"`
	SMTP     SMTP      `mapstructure:"smtp"`
	Telegram Telegram  `mapstructure:"telegram"`
	Out      KafkaOut  `mapstructure:"kafka_out"`
	In       KafkaIn   `mapstructure:"kafka_in"`
	Server   Server    `mapstructure:"server"`
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
