package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

func TestIncidentTracker_OnlyForUnhealthy(t *testing.T) {
	for _, st := range []domain.Status{
		domain.StatusHealthy, domain.StatusDegraded, domain.StatusDown, domain.StatusTimeout, domain.StatusUnknown,
	} {
		t.Run(st.String(), func(t *testing.T) {
			clock := newClock()
			store := newStore(clock)
			tr := NewIncidentTracker(store)

			created, err := tr.MaybeRecord(context.Background(), domain.EndpointResult{
				URL: "https://api.example.com/health", Status: st, CheckedAt: clock.Now(),
			})
			require.NoError(t, err)

			got, err := store.Query(context.Background(), record.Query{Prefix: incidentPrefix})
			require.NoError(t, err)
			if st == domain.StatusHealthy {
				assert.False(t, created)
				assert.Empty(t, got)
				return
			}
			assert.True(t, created)
			require.Len(t, got, 1)
			assert.Equal(t, map[string]string{"type": "incident", "service": "api"}, got[0].Metadata)

			var inc domain.Incident
			require.NoError(t, json.Unmarshal(got[0].Value, &inc))
			assert.Equal(t, st, inc.Status)
			assert.True(t, inc.OccurredAt.Equal(clock.Now()))
		})
	}
}

func TestRecorder_RetentionAndMetadata(t *testing.T) {
	clock := newClock()
	store := newStore(clock)
	code := 200
	res := domain.EndpointResult{
		URL: "https://auth.example.com/health", Status: domain.StatusHealthy,
		ResponseTimeMS: 42, StatusCode: &code, CheckedAt: clock.Now(),
	}

	require.NoError(t, NewRecorder(store).Record(context.Background(), res))

	key := healthKey("auth", res.CheckedAt, "")
	e, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"type": "health_check", "service": "auth", "status": "healthy"}, e.Metadata)
	require.NotNil(t, e.ExpiresAt)
	assert.True(t, e.ExpiresAt.Equal(clock.Now().Add(7*24*time.Hour)))

	var back domain.EndpointResult
	require.NoError(t, json.Unmarshal(e.Value, &back))
	assert.EqualValues(t, 42, back.ResponseTimeMS)

	clock.Advance(7 * 24 * time.Hour)
	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecorder_StoreFailureIsPersistenceError(t *testing.T) {
	err := NewRecorder(brokenStore{}).Record(context.Background(), domain.EndpointResult{URL: "https://x.example.com"})
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errStoreDown)
}
