package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/obs"
	"github.com/NordCoder/opsmonitor/internal/obs/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Run is a command bound to already validated arguments.
type Run func(ctx context.Context) (any, error)

// Spec is the fixed metadata of one command plus its argument binder.
type Spec struct {
	Name      string
	Namespace string
	Timeout   time.Duration
	// Retries is the number of extra attempts after a persistence failure.
	Retries int
	Queue   string
	// Bind decodes and validates raw JSON arguments. It must not do I/O.
	Bind func(raw []byte) (Run, error)
}

type Registry struct {
	log   *zap.Logger
	specs map[string]Spec
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:   log.With(zap.String("component", "command_registry")),
		specs: map[string]Spec{},
	}
}

func (r *Registry) Register(s Spec) error {
	if s.Name == "" || s.Bind == nil {
		return errors.New("command: spec needs a name and a binder")
	}
	if _, dup := r.specs[s.Name]; dup {
		return fmt.Errorf("command: %q already registered", s.Name)
	}
	r.specs[s.Name] = s
	return nil
}

func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Execute runs the named command and returns its JSON payload. Every
// failure is returned as *Error.
func (r *Registry) Execute(ctx context.Context, name string, raw []byte) ([]byte, error) {
	spec, ok := r.specs[name]
	if !ok {
		return nil, &Error{Kind: KindUnknownCommand, Message: fmt.Sprintf("unknown command %q", name)}
	}

	ctx, span := otel.Tracer("command").Start(ctx, "command."+name, trace.WithAttributes(
		attribute.String("command.namespace", spec.Namespace),
		attribute.String("command.queue", spec.Queue),
	))
	defer span.End()
	log := obs.WithTrace(ctx, r.log).With(zap.String("command", name))

	run, err := spec.Bind(raw)
	if err != nil {
		mCommands.WithLabelValues(name, string(KindValidation)).Inc()
		return nil, AsError(err)
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	start := time.Now()
	var out any
	err = retry.Do(ctx, func() error {
		var err error
		out, err = run(ctx)
		return err
	}, retry.CommandPolicy(log, name, spec.Retries, retryable))
	mCommandDur.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		ce := AsError(err)
		mCommands.WithLabelValues(name, string(ce.Kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ce.Kind))
		return nil, ce
	}

	payload, err := json.Marshal(out)
	if err != nil {
		mCommands.WithLabelValues(name, string(KindInternal)).Inc()
		log.Error("encode result", zap.Error(err))
		return nil, &Error{Kind: KindInternal, Message: "internal error"}
	}
	mCommands.WithLabelValues(name, "ok").Inc()
	return payload, nil
}

func retryable(err error) bool {
	var pe *domain.PersistenceError
	return errors.As(err, &pe)
}
