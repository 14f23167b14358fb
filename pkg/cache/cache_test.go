package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheHit(string)  { o.hits++ }
func (o *countingObserver) CacheMiss(string) { o.misses++ }

type payload struct {
	Value  float64            `json:"value"`
	Labels []string           `json:"labels"`
	Extra  map[string]float64 `json:"extra"`
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("second call is served from cache", func(t *testing.T) {
		obs := &countingObserver{}
		c := New(NewMemoryStore(), obs)
		calls := 0
		compute := func(context.Context) (payload, error) {
			calls++
			return payload{Value: 42.5, Labels: []string{"a", "b"}, Extra: map[string]float64{"x": 1}}, nil
		}

		first, err := GetOrCompute(ctx, c, "widget", "k1", time.Minute, compute)
		require.NoError(t, err)
		second, err := GetOrCompute(ctx, c, "widget", "k1", time.Minute, compute)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, obs.hits)
		assert.Equal(t, 1, obs.misses)
	})

	t.Run("expired entry recomputes", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		store := NewMemoryStore().WithClock(func() time.Time { return now })
		c := New(store, nil)
		calls := 0
		compute := func(context.Context) (int, error) {
			calls++
			return calls, nil
		}

		v, err := GetOrCompute(ctx, c, "report", "k", 5*time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		now = now.Add(6 * time.Minute)
		v, err = GetOrCompute(ctx, c, "report", "k", 5*time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("compute error is not cached", func(t *testing.T) {
		store := NewMemoryStore()
		c := New(store, nil)
		boom := errors.New("boom")

		_, err := GetOrCompute(ctx, c, "report", "k", time.Minute, func(context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("nil cache computes every time", func(t *testing.T) {
		calls := 0
		for i := 0; i < 2; i++ {
			_, err := GetOrCompute(ctx, nil, "report", "k", time.Minute, func(context.Context) (int, error) {
				calls++
				return calls, nil
			})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, calls)
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "a", []byte(`{"v":1}`), time.Minute))
	require.NoError(t, store.Set(ctx, "a", []byte(`{"v":2}`), time.Minute))

	got, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got))

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "b", []byte("x"), time.Second))
	now = now.Add(time.Hour)
	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenSQLitePurgesExpired(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), 100*365*24*time.Hour))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var keys []string
	rows, err := store.db.QueryContext(ctx, `SELECT cache_key FROM cache_entries`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var k string
		require.NoError(t, rows.Scan(&k))
		keys = append(keys, k)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"fresh"}, keys)
}

func TestWidgetKey(t *testing.T) {
	type cfg struct {
		Metric  string            `json:"metric"`
		Filters map[string]string `json:"filters"`
	}

	a, err := WidgetKey(domain.WidgetKPI, 1, cfg{Metric: "total_revenue", Filters: map[string]string{"a": "1", "b": "2"}})
	require.NoError(t, err)
	b, err := WidgetKey(domain.WidgetKPI, 1, cfg{Metric: "total_revenue", Filters: map[string]string{"b": "2", "a": "1"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	otherTenant, err := WidgetKey(domain.WidgetKPI, 2, cfg{Metric: "total_revenue", Filters: map[string]string{"a": "1", "b": "2"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, otherTenant)

	nested, err := WidgetKey(domain.WidgetKPI, 1, cfg{Metric: "total_revenue", Filters: map[string]string{"a": "1", "b": "3"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, nested)
}

func TestBundleKey(t *testing.T) {
	jan := domain.MustDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	feb := domain.MustDateRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, BundleKey(1, "financial", "overview", jan), BundleKey(1, " Financial ", "OVERVIEW", jan))
	assert.NotEqual(t, BundleKey(1, "financial", "overview", jan), BundleKey(1, "financial", "overview", feb))
	assert.NotEqual(t, BundleKey(1, "financial", "overview", jan), BundleKey(1, "financial", "revenue", jan))
}
