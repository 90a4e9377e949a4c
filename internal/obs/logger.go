package obs

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
	// Output is a zap sink URL or path; empty means stderr so that command
	// output on stdout stays machine-readable.
	Output string
}

// NewLogger builds a zap logger tagged with the application identity.
// An unparsable level falls back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if l, err := zapcore.ParseLevel(c.Level); err == nil {
			level = l
		}
	}

	sink := os.Stderr
	var ws zapcore.WriteSyncer = zapcore.Lock(sink)
	if c.Output != "" && c.Output != "stderr" {
		w, _, err := zap.Open(c.Output)
		if err != nil {
			return nil, fmt.Errorf("open log output %q: %w", c.Output, err)
		}
		ws = w
	}

	core := zapcore.NewCore(encoderFor(c.Pretty), ws, zap.NewAtomicLevelAt(level))
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.String("service", c.App),
			zap.String("env", c.Env),
			zap.String("version", c.Ver),
		),
	}
	if c.Pretty {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}

func encoderFor(pretty bool) zapcore.Encoder {
	if pretty {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(ec)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return zapcore.NewJSONEncoder(ec)
}
