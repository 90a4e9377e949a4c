package obs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const healthTimeout = 500 * time.Millisecond

// HealthFunc reports whether the process can serve; typically a store ping.
type HealthFunc func(context.Context) error

// BootstrapMetricsServer serves /metrics, /healthz and /readyz on addr in
// the background. The caller shuts the returned server down.
func BootstrapMetricsServer(addr string, health HealthFunc, l *zap.Logger) *http.Server {
	ms := createMetricsServer(addr, health)
	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server", zap.Error(err))
		}
	}()
	return ms
}

func createMetricsServer(addr string, health HealthFunc) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	// liveness never touches the store
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if health == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()
		if err := health(ctx); err != nil {
			http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
