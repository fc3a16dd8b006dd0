package cache

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/models"
	"github.com/ajitpratap0/catmaid-go/internal/neuron"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededInner() *fetch.MockFetcher {
	m := fetch.NewMockFetcher()
	name := "cached neuron"
	m.Seed(16, &fetch.Record{
		Name: &name,
		Nodes: models.TreenodeTable{
			{ID: 1, ParentID: models.RootParent, Radius: 150, Confidence: 5},
			{ID: 2, ParentID: 1, X: 10, Radius: -1, Confidence: 5},
		},
		Connectors: models.ConnectorTable{},
		Tags:       models.Tags{models.SomaTag: {1}},
	})
	return m
}

func openCache(t *testing.T, inner fetch.Fetcher, ttl time.Duration) *CachingFetcher {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), inner, ttl, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_HitSkipsInnerFetcher(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	recs, err := c.FetchFields(ctx, []int64{16}, fetch.GroupSkeleton)
	require.NoError(t, err)
	require.Len(t, recs[16].Nodes, 2)
	require.Equal(t, 1, inner.Calls(16, fetch.GroupSkeleton))

	// Served from sqlite, inner untouched.
	recs, err = c.FetchFields(ctx, []int64{16}, fetch.GroupSkeleton)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls(16, fetch.GroupSkeleton))

	rec := recs[16]
	require.Len(t, rec.Nodes, 2)
	assert.Equal(t, models.RootParent, rec.Nodes[0].ParentID)
	assert.Equal(t, []int64{1}, rec.Tags[models.SomaTag])
}

func TestCache_GroupsCachedIndependently(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{16}, fetch.GroupSkeleton)
	require.NoError(t, err)
	_, err = c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.Calls(16, fetch.GroupSkeleton))
	assert.Equal(t, 1, inner.Calls(16, fetch.GroupName))
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)

	// Move the clock past the TTL.
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls(16, fetch.GroupName))
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, 16, fetch.GroupName))

	_, err = c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls(16, fetch.GroupName))
}

func TestCache_Clear(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	_, err = c.FetchFields(ctx, []int64{16}, fetch.GroupSkeleton)
	require.NoError(t, err)

	require.NoError(t, c.Clear(ctx))

	_, err = c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls(16, fetch.GroupName))
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{99}, fetch.GroupName)
	var unknown *fetch.UnknownSkeletonError
	require.ErrorAs(t, err, &unknown)

	// Seed the skeleton and fetch again: the failure left no entry behind.
	name := "late arrival"
	inner.Seed(99, &fetch.Record{Name: &name})
	recs, err := c.FetchFields(ctx, []int64{99}, fetch.GroupName)
	require.NoError(t, err)
	assert.Equal(t, "late arrival", *recs[99].Name)
}

func TestCache_HitKeepsEmptyTablesPopulated(t *testing.T) {
	ctx := context.Background()
	inner := fetch.NewMockFetcher()
	name := "sparse neuron"
	inner.Seed(21, &fetch.Record{
		Name:       &name,
		Nodes:      models.TreenodeTable{{ID: 1, ParentID: models.RootParent, Radius: -1, Confidence: 5}},
		Connectors: models.ConnectorTable{},
		Tags:       models.Tags{},
	})
	c := openCache(t, inner, time.Hour)

	// First session fills the cache through a neuron read.
	warm := neuron.New(21, c)
	tags, err := warm.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
	require.Equal(t, 1, inner.Calls(21, fetch.GroupSkeleton))

	// Second session is served from sqlite. Empty connector and tag tables
	// must still count as populated, or every read re-enters FetchFields.
	n := neuron.New(21, c)
	_, err = n.Nodes(ctx)
	require.NoError(t, err)
	assert.True(t, n.Populated(fetch.GroupSkeleton))

	connectors, err := n.Connectors(ctx)
	require.NoError(t, err)
	assert.Empty(t, connectors)
	tags, err = n.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, 1, inner.Calls(21, fetch.GroupSkeleton))
}

func TestCache_MixedHitAndMissBatch(t *testing.T) {
	ctx := context.Background()
	inner := seededInner()
	name := "second"
	inner.Seed(17, &fetch.Record{Name: &name})
	c := openCache(t, inner, time.Hour)

	_, err := c.FetchFields(ctx, []int64{16}, fetch.GroupName)
	require.NoError(t, err)

	recs, err := c.FetchFields(ctx, []int64{16, 17}, fetch.GroupName)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, inner.Calls(16, fetch.GroupName), "16 came from the cache")
	assert.Equal(t, 1, inner.Calls(17, fetch.GroupName))
}
