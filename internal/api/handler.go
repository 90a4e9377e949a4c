package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/command"
	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/obs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBody = 1 << 20

type Executor interface {
	Execute(ctx context.Context, name string, args []byte) ([]byte, error)
	Names() []string
}

type AlertReader interface {
	Get(ctx context.Context, alertID string) (domain.Alert, error)
}

type Handler struct {
	exec   Executor
	alerts AlertReader
	log    *zap.Logger
}

func New(exec Executor, alerts AlertReader, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{exec: exec, alerts: alerts, log: log.With(zap.String("component", "http_api"))}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/commands", h.ListCommands)
		r.Post("/monitor/{command}", h.RunCommand)
		r.Get("/alerts/{id}", h.GetAlert)
	})
	return r
}

func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"commands": h.exec.Names()})
}

func (h *Handler) RunCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, &command.Error{Kind: command.KindValidation, Message: "unreadable request body"})
		return
	}

	out, err := h.exec.Execute(r.Context(), name, body)
	if err != nil {
		writeError(w, command.AsError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.alerts.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, &command.Error{Kind: command.KindNotFound, Message: "alert not found"})
		return
	}
	if err != nil {
		h.log.Warn("get alert", zap.Error(err))
		writeError(w, command.AsError(err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("trace_id", obs.TraceID(r.Context())),
		)
	})
}

func statusFor(k command.Kind) int {
	switch k {
	case command.KindValidation:
		return http.StatusBadRequest
	case command.KindNotFound, command.KindUnknownCommand:
		return http.StatusNotFound
	case command.KindTimeout:
		return http.StatusGatewayTimeout
	case command.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *command.Error) {
	writeJSON(w, statusFor(e.Kind), map[string]*command.Error{"error": e})
}
