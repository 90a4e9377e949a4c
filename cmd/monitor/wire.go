package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/command"
	config "github.com/NordCoder/opsmonitor/internal/config/monitor"
	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/notifier"
	"github.com/NordCoder/opsmonitor/internal/obs"
	"github.com/NordCoder/opsmonitor/internal/reasoner"
	"github.com/NordCoder/opsmonitor/internal/repository/kafka"
	"github.com/NordCoder/opsmonitor/internal/services/monitor"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type app struct {
	cfg        *config.Config
	log        *zap.Logger
	otel       *obs.OTel
	store      storeBundle
	cycle      *monitor.Cycle
	dispatcher *monitor.Dispatcher
	registry   *command.Registry
	producers  []*kafka.Producer
}

func bootstrap(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	l, err := obs.NewLogger(*cfg.AsLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	otelCloser, err := obs.SetupOTel(ctx, cfg.AsOTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	}

	a := &app{cfg: cfg, log: l, otel: otelCloser}
	st, err := openStore(ctx, cfg, systemClock{}, l)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.store = st
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg, l, clock := a.cfg, a.log, systemClock{}

	a.cycle = &monitor.Cycle{
		Probe:      monitor.NewProbe(monitor.NewHTTPClient(cfg.HTTP.AsHTTPConfig()), clock),
		Recorder:   monitor.NewRecorder(a.store.Repo),
		Incidents:  monitor.NewIncidentTracker(a.store.Repo),
		Transactor: a.store.Tx,
		Clock:      clock,
		Log:        l.With(zap.String("component", "health_check")),
		Defaults:   cfg.Monitor.DefaultEndpoints,
		FanOut:     cfg.Monitor.FanOut,
	}

	rsn := reasoner.New(cfg.Reasoner.AsReasonerConfig(), l)
	diagnoser := &monitor.Diagnoser{
		Store:    a.store.Repo,
		Reasoner: rsn,
		Clock:    clock,
		Settings: cfg.Reasoner.AsSettings(),
		Log:      l.With(zap.String("component", "diagnosis")),
	}
	aggregator := &monitor.Aggregator{
		Store:    a.store.Repo,
		Reasoner: rsn,
		Clock:    clock,
		Settings: cfg.Reasoner.AsSettings(),
		Log:      l.With(zap.String("component", "status_report")),
	}
	a.dispatcher = monitor.NewDispatcher(a.store.Repo, clock, l, a.channels()...)

	a.registry = command.NewRegistry(l)
	return command.RegisterMonitor(a.registry, command.Monitor{
		Checks:    a.cycle,
		Diagnoses: diagnoser,
		Alerts:    a.dispatcher,
		Reports:   aggregator,
	})
}

func (a *app) channels() []domain.AlertChannel {
	cfg, l := a.cfg, a.log
	var out []domain.AlertChannel
	if cfg.SMTP.Enable {
		out = append(out, monitor.EmailChannel{
			Sender: notifier.NewMailer(cfg.SMTP.AsSMTPConfig()).WithLogger(l),
			To:     cfg.SMTP.To,
		})
	}
	if cfg.Telegram.Enable {
		out = append(out, monitor.ChatChannel{
			Sender: notifier.NewTelegram(cfg.Telegram.AsTelegramConfig()).WithLogger(l),
			ChatID: cfg.Telegram.ChatID,
		})
	}
	if cfg.Out.Enable {
		out = append(out, kafka.NewAlertEvents(a.producer(cfg.Out.Brokers, cfg.Out.Topic)))
	}
	return out
}

func (a *app) producer(brokers []string, topic string) *kafka.Producer {
	p := kafka.NewProducer(brokers, topic).WithLogger(a.log)
	a.producers = append(a.producers, p)
	return p
}

func (a *app) Close() {
	for _, p := range a.producers {
		_ = p.Close()
	}
	if a.store.close != nil {
		a.store.close()
	}
	if a.otel != nil {
		_ = a.otel.Shutdown(context.Background())
	}
	_ = a.log.Sync()
}
