package monitor

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	kafkax "github.com/NordCoder/opsmonitor/internal/repository/kafka"
)

// Executor runs a named command with JSON arguments.
type Executor interface {
	Execute(ctx context.Context, name string, args []byte) ([]byte, error)
}

// Controller turns check requests consumed from kafka into health-check commands.
type Controller struct {
	Log  *zap.Logger
	Sub  *kafkax.Consumer
	Exec Executor
}

type checkArgs struct {
	Endpoints      []string `json:"endpoints"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

func (c *Controller) Run(ctx context.Context) error {
	err := c.Sub.Consume(ctx, kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		c.handle,
	))
	if err != nil && !errors.Is(err, context.Canceled) {
		orNop(c.Log).Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

func (c *Controller) handle(ctx context.Context, key []byte, msg *structpb.Struct) error {
	log := orNop(c.Log).With(zap.String("key", string(key)))

	req, err := kafkax.DecodeCheckRequest(msg)
	if err != nil {
		mCheckRequests.WithLabelValues("invalid").Inc()
		log.Warn("invalid check request", zap.Error(err))
		return nil
	}
	args, err := json.Marshal(checkArgs{Endpoints: req.Endpoints, TimeoutSeconds: req.TimeoutSeconds})
	if err != nil {
		return err
	}

	if _, err := c.Exec.Execute(ctx, "health-check", args); err != nil {
		mCheckRequests.WithLabelValues("error").Inc()
		log.Warn("check request failed", zap.Error(err))
		return err
	}
	mCheckRequests.WithLabelValues("ok").Inc()
	log.Debug("check request handled", zap.Int("endpoints", len(req.Endpoints)))
	return nil
}
