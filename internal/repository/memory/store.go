package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

var (
	_ record.Repo       = (*Store)(nil)
	_ record.Transactor = (*Store)(nil)
)

const cleanupInterval = 10 * time.Minute

// Store keeps records in process memory. Expiry is evaluated against the
// injected clock on every read; go-cache only reclaims memory in the background.
type Store struct {
	mu    sync.RWMutex
	items *cache.Cache
	clock record.Clock
}

func NewStore(clock record.Clock) *Store {
	return &Store{
		items: cache.New(cache.NoExpiration, cleanupInterval),
		clock: clock,
	}
}

func (s *Store) Save(ctx context.Context, key string, value []byte, opts record.SaveOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := newEntry(key, value, opts, s.clock.Now())

	if buf, ok := bufferFrom(ctx); ok {
		if opts.Create && s.holds(key) {
			return record.ErrExists
		}
		buf.stage(e, opts.TTL)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.Create && s.liveLocked(key) {
		return record.ErrExists
	}
	s.put(e, opts.TTL)
	return nil
}

func (s *Store) holds(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveLocked(key)
}

func (s *Store) liveLocked(key string) bool {
	v, ok := s.items.Get(key)
	return ok && v.(record.Entry).Live(s.clock.Now())
}

func (s *Store) Get(ctx context.Context, key string) (record.Entry, error) {
	if err := ctx.Err(); err != nil {
		return record.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items.Get(key)
	if !ok {
		return record.Entry{}, record.ErrNotFound
	}
	e := v.(record.Entry)
	if !e.Live(s.clock.Now()) {
		return record.Entry{}, record.ErrNotFound
	}
	return e, nil
}

func (s *Store) Query(ctx context.Context, q record.Query) ([]record.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	s.mu.RLock()
	items := s.items.Items()
	s.mu.RUnlock()

	out := make([]record.Entry, 0)
	for _, it := range items {
		e := it.Object.(record.Entry)
		if !e.Live(now) || !q.Matches(e.Key, e.Metadata) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Desc {
			return out[i].Key > out[j].Key
		}
		return out[i].Key < out[j].Key
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// WithTx stages every Save made through ctx and applies them together once fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := bufferFrom(ctx); ok {
		return fn(ctx)
	}

	buf := &txBuffer{}
	if err := fn(context.WithValue(ctx, txKey{}, buf)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range buf.writes {
		s.put(w.entry, w.ttl)
	}
	return nil
}

func (s *Store) put(e record.Entry, ttl time.Duration) {
	d := cache.NoExpiration
	if ttl > 0 {
		d = ttl
	}
	s.items.Set(e.Key, e, d)
}

func newEntry(key string, value []byte, opts record.SaveOptions, now time.Time) record.Entry {
	md := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		md[k] = v
	}
	return record.Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Metadata:  md,
		ExpiresAt: opts.ExpiresAt(now),
	}
}

type txKey struct{}

type stagedWrite struct {
	entry record.Entry
	ttl   time.Duration
}

type txBuffer struct {
	mu     sync.Mutex
	writes []stagedWrite
}

func (b *txBuffer) stage(e record.Entry, ttl time.Duration) {
	b.mu.Lock()
	b.writes = append(b.writes, stagedWrite{entry: e, ttl: ttl})
	b.mu.Unlock()
}

func bufferFrom(ctx context.Context) (*txBuffer, bool) {
	b, ok := ctx.Value(txKey{}).(*txBuffer)
	return b, ok
}
