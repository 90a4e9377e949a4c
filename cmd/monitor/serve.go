package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/api"
	"github.com/NordCoder/opsmonitor/internal/obs"
	"github.com/NordCoder/opsmonitor/internal/repository/kafka"
	"github.com/NordCoder/opsmonitor/internal/services/monitor"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled health checks and expose the HTTP command API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, l := a.cfg, a.log
	root, stop := context.WithCancel(parent)
	defer stop()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, a.store.Repo.Ping, l)

	// kafka
	if cfg.Out.Enable {
		_ = kafka.EnsureTopic(root, cfg.Out.Brokers, kafka.TopicSpec{
			Name:          cfg.Out.Topic,
			NumPartitions: cfg.Out.Partitions,
			MaxWait:       5 * time.Second,
		}, l)
	}

	errCh := make(chan error, 3)

	// http api
	httpSrv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      otelhttp.NewHandler(api.New(a.registry, a.dispatcher, l).Router(), "http.api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		l.Info("http api listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// scheduler
	runner := &monitor.Runner{
		Log:        l.With(zap.String("component", "runner")),
		Cycle:      a.cycle,
		Pruner:     a.store.Pruner,
		Interval:   cfg.Monitor.Interval,
		Timeout:    time.Duration(cfg.Monitor.TimeoutSeconds) * time.Second,
		PruneEvery: cfg.Monitor.PruneEvery,
	}
	go func() {
		if err := runner.Run(root); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// check requests
	if cfg.In.Enable {
		cons := kafka.BootstrapConsumer(root, &kafka.ConsumerConfig{
			Brokers: cfg.In.Brokers,
			GroupID: cfg.In.GroupID,
			Topic:   cfg.In.Topic,
			Logger:  l,
		}, cfg.In.Partitions, l)
		defer func() { _ = cons.Close() }()

		ctrl := &monitor.Controller{Log: l.With(zap.String("component", "check_controller")), Sub: cons, Exec: a.registry}
		go func() {
			if err := ctrl.Run(root); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-root.Done():
	case runErr = <-errCh:
		l.Error("serve error", zap.Error(runErr))
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
	return runErr
}

func enqueueCheck(cmd *cobra.Command, endpoints []string, timeout int) error {
	a, err := bootstrap(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	key := uuid.NewString()
	reqs := kafka.NewCheckRequests(a.producer(a.cfg.In.Brokers, a.cfg.In.Topic))
	if err := reqs.Publish(cmd.Context(), key, kafka.CheckRequest{Endpoints: endpoints, TimeoutSeconds: timeout}); err != nil {
		return err
	}
	b, err := json.Marshal(map[string]any{"enqueued": true, "request_id": key, "topic": a.cfg.In.Topic})
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(b, '\n'))
	return err
}
