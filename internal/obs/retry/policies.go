package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ReasonerPolicy retries completion calls; retryable decides which API errors are transient.
func ReasonerPolicy(log *zap.Logger, attempts int, retryable func(error) bool) Policy {
	return Policy{
		Name:     "reasoner",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: 500 * time.Millisecond, Max: 8 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return retryable == nil || retryable(err)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("reasoner retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// CommandPolicy re-runs a command whose failure is classified as retryable.
func CommandPolicy(log *zap.Logger, name string, retries int, retryable func(error) bool) Policy {
	return Policy{
		Name:      "command." + name,
		Attempts:  retries + 1,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		Retryable: retryable,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("command attempt failed", zap.String("command", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("command failed", zap.String("command", name), zap.Error(err))
			}
		},
	}
}
