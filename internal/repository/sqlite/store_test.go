package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), "records.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, clk
}

func TestStore_SaveQueryExpiry(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "health:api:2", []byte(`{"n":2}`), record.SaveOptions{
		TTL: time.Hour, Metadata: map[string]string{"type": "health_check", "service": "api"},
	}))
	require.NoError(t, s.Save(ctx, "health:api:1", []byte(`{"n":1}`), record.SaveOptions{
		TTL: 2 * time.Hour, Metadata: map[string]string{"type": "health_check", "service": "api"},
	}))
	require.NoError(t, s.Save(ctx, "health:auth:1", []byte(`{"n":3}`), record.SaveOptions{
		TTL: time.Hour, Metadata: map[string]string{"type": "health_check", "service": "auth"},
	}))

	got, err := s.Query(ctx, record.Query{Prefix: "health:", Metadata: map[string]string{"service": "api"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "health:api:1", got[0].Key)
	assert.JSONEq(t, `{"n":1}`, string(got[0].Value))

	clk.now = clk.now.Add(90 * time.Minute)

	got, err = s.Query(ctx, record.Query{Prefix: "health:"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "health:api:1", got[0].Key)

	_, err = s.Get(ctx, "health:auth:1")
	assert.ErrorIs(t, err, record.ErrNotFound)

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestStore_Upsert(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "alert:x", []byte(`1`), record.SaveOptions{}))
	require.NoError(t, s.Save(ctx, "alert:x", []byte(`2`), record.SaveOptions{Metadata: map[string]string{"type": "alert"}}))

	e, err := s.Get(ctx, "alert:x")
	require.NoError(t, err)
	assert.Equal(t, "2", string(e.Value))
	assert.Equal(t, "alert", e.Metadata["type"])
	assert.Nil(t, e.ExpiresAt)
}

func TestStore_WithTxRollback(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Save(ctx, "health:a", []byte(`1`), record.SaveOptions{}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "health:a")
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestStore_QueryFiltersInSQL(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	save := func(key, svc string) {
		require.NoError(t, s.Save(ctx, key, []byte(`{}`), record.SaveOptions{
			TTL: time.Hour, Metadata: map[string]string{"type": "incident", "service": svc},
		}))
	}
	save("incident:api:01", "api")
	save("incident:api:02", "api")
	save("incident:api:03", "api")
	save("incident:auth:01", "auth")

	got, err := s.Query(ctx, record.Query{
		Prefix:   "incident:",
		Metadata: map[string]string{"service": "api", "type": "incident"},
		Desc:     true,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "incident:api:03", got[0].Key)
	assert.Equal(t, "incident:api:02", got[1].Key)

	got, err = s.Query(ctx, record.Query{Prefix: "incident:api:", From: "incident:api:02"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "incident:api:02", got[0].Key)

	got, err = s.Query(ctx, record.Query{Metadata: map[string]string{"service": "db"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_CreateOnlyWhileLive(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	opts := record.SaveOptions{TTL: time.Minute, Create: true}

	require.NoError(t, s.Save(ctx, "alert:a1", []byte(`1`), opts))
	assert.ErrorIs(t, s.Save(ctx, "alert:a1", []byte(`2`), opts), record.ErrExists)

	e, err := s.Get(ctx, "alert:a1")
	require.NoError(t, err)
	assert.Equal(t, "1", string(e.Value))

	clk.now = clk.now.Add(time.Minute)
	require.NoError(t, s.Save(ctx, "alert:a1", []byte(`3`), opts))
	e, err = s.Get(ctx, "alert:a1")
	require.NoError(t, err)
	assert.Equal(t, "3", string(e.Value))
}
