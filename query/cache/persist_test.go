package cache_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/cache"
)

func TestDiskStore_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := cache.NewDiskStore(fs, "/var/cache/salesreport")
	require.NoError(t, err)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err = store.Save("fp1", &cache.Entry{
		Rows:      query.Rows{{"product_id": 7, "product_name": "Bread"}},
		CreatedAt: created,
		TTL:       time.Minute,
		Tags:      []string{"products", "sales"},
	})
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/var/cache/salesreport/fp1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	e, err := store.Load("fp1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, created.Equal(e.CreatedAt))
	assert.Equal(t, time.Minute, e.TTL)
	assert.Equal(t, []string{"products", "sales"}, e.Tags)
	assert.Equal(t, json.Number("7"), e.Rows[0]["product_id"])
	assert.Equal(t, "Bread", e.Rows[0]["product_name"])

	missing, err := store.Load("unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDiskStore_DeleteTaggedAndPurge(t *testing.T) {
	store, err := cache.NewDiskStore(afero.NewMemMapFs(), "cache")
	require.NoError(t, err)

	for fp, tags := range map[query.Fingerprint][]string{
		"a": {"sales"},
		"b": {"customers", "sales"},
		"c": {"employees"},
	} {
		require.NoError(t, store.Save(fp, &cache.Entry{Rows: query.Rows{}, TTL: time.Minute, Tags: tags}))
	}

	n, err := store.DeleteTagged("sales")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := store.Load("c")
	require.NoError(t, err)
	assert.NotNil(t, e)

	require.NoError(t, store.Purge())
	e, err = store.Load("c")
	require.NoError(t, err)
	assert.Nil(t, e)

	assert.NoError(t, store.Delete("never-saved"))
}

func TestDiskStore_DiscardsUnreadableFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := cache.NewDiskStore(fs, "cache")
	require.NoError(t, err)

	for fp, format := range map[string]string{"legacy": "", "future": "2.0", "garbage": "x.y"} {
		body := `{"format":"` + format + `","fingerprint":"` + fp + `","created_at":"2024-03-01T12:00:00Z","ttl":60000000000,"rows":[]}`
		require.NoError(t, afero.WriteFile(fs, "cache/"+fp+".json", []byte(body), 0o644))

		e, err := store.Load(query.Fingerprint(fp))
		require.NoError(t, err, fp)
		assert.Nil(t, e, fp)

		exists, err := afero.Exists(fs, "cache/"+fp+".json")
		require.NoError(t, err)
		assert.False(t, exists, fp)
	}

	body := `{"format":"1.0","fingerprint":"old","created_at":"2024-03-01T12:00:00Z","ttl":60000000000,"rows":[{"units":3}]}`
	require.NoError(t, afero.WriteFile(fs, "cache/old.json", []byte(body), 0o644))
	e, err := store.Load("old")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, json.Number("3"), e.Rows[0]["units"])
}

func TestCache_PersistentTierSurvivesRestart(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClock()
	var calls atomic.Int64
	ctx := context.Background()

	store, err := cache.NewDiskStore(fs, "cache")
	require.NoError(t, err)
	first := newCache(t, testConfig(), cache.WithClock(clock), cache.WithStore(store))
	_, _, err = first.GetOrCompute(ctx, "fp", counter(&calls), ttl)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newCache(t, testConfig(), cache.WithClock(clock), cache.WithStore(store))
	rows, cached, err := second.GetOrCompute(ctx, "fp", counter(&calls), ttl)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, json.Number("1"), rows[0]["call"])
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), second.Stats().StoreHits)

	clock.Advance(ttl + time.Second)
	third := newCache(t, testConfig(), cache.WithClock(clock), cache.WithStore(store))
	_, cached, err = third.GetOrCompute(ctx, "fp", counter(&calls), ttl)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCache_InvalidateRemovesPersistedEntry(t *testing.T) {
	store, err := cache.NewDiskStore(afero.NewMemMapFs(), "cache")
	require.NoError(t, err)
	c := newCache(t, testConfig(), cache.WithStore(store))
	var calls atomic.Int64

	_, _, err = c.GetOrCompute(context.Background(), "fp", counter(&calls), ttl, cache.WithTags("sales"))
	require.NoError(t, err)

	c.Invalidate("fp")
	e, err := store.Load("fp")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestCache_EvictionRemovesPersistedEntry(t *testing.T) {
	store, err := cache.NewDiskStore(afero.NewMemMapFs(), "cache")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.MaxEntries = 1
	c := newCache(t, cfg, cache.WithStore(store))
	var calls atomic.Int64
	ctx := context.Background()

	_, _, err = c.GetOrCompute(ctx, "a", counter(&calls), ttl)
	require.NoError(t, err)
	_, _, err = c.GetOrCompute(ctx, "b", counter(&calls), ttl)
	require.NoError(t, err)

	evicted, err := store.Load("a")
	require.NoError(t, err)
	assert.Nil(t, evicted)

	kept, err := store.Load("b")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
