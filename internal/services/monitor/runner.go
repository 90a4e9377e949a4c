package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

const DefaultPruneEvery = time.Hour

// Runner executes a health-check cycle over the default endpoints on every
// tick and periodically reclaims expired rows from stores that support it.
type Runner struct {
	Log        *zap.Logger
	Cycle      *Cycle
	Pruner     record.Pruner
	Interval   time.Duration
	Timeout    time.Duration
	PruneEvery time.Duration
}

func (r *Runner) tick(ctx context.Context) {
	// a cycle may never outlive its interval
	cctx, cancel := context.WithTimeout(ctx, r.Interval)
	defer cancel()

	if _, err := r.Cycle.Run(cctx, nil, r.Timeout); err != nil && ctx.Err() == nil {
		orNop(r.Log).Warn("scheduled health check", zap.Error(err))
	}
}

func (r *Runner) prune(ctx context.Context) {
	if r.Pruner == nil {
		return
	}
	n, err := r.Pruner.Prune(ctx)
	if err != nil {
		orNop(r.Log).Warn("prune expired records", zap.Error(err))
		return
	}
	mPruned.Add(float64(n))
	if n > 0 {
		orNop(r.Log).Debug("pruned expired records", zap.Int64("rows", n))
	}
}

func (r *Runner) Run(ctx context.Context) error {
	pruneEvery := r.PruneEvery
	if pruneEvery <= 0 {
		pruneEvery = DefaultPruneEvery
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	pruner := time.NewTicker(pruneEvery)
	defer pruner.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		case <-pruner.C:
			r.prune(ctx)
		}
	}
}
