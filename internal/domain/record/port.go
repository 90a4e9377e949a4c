package record

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

type Repo interface {
	Save(ctx context.Context, key string, value []byte, opts SaveOptions) error
	// Get returns ErrNotFound for absent and expired keys.
	Get(ctx context.Context, key string) (Entry, error)
	// Query returns live entries ordered by key, ascending unless q.Desc.
	Query(ctx context.Context, q Query) ([]Entry, error)
	Ping(ctx context.Context) error
}

// Pruner is implemented by stores that physically reclaim expired rows.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}
