// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) redis.Cmdable {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	w := NewRedisCatalogWriter(newTestRedis(t), "scan")
	ctx := context.Background()

	id1, change1, err := w.Upsert(ctx, "tmdb:movie:1", "movie", []byte(`{"title":"A"}`))
	require.NoError(t, err)
	require.Equal(t, actors.CatalogCreated, change1)

	id2, change2, err := w.Upsert(ctx, "tmdb:movie:1", "movie", []byte(`{"title":"A Director's Cut"}`))
	require.NoError(t, err)
	require.Equal(t, actors.CatalogUpdated, change2)
	require.Equal(t, id1, id2)
}

func TestUpsertDistinctNaturalKeysGetDistinctIDs(t *testing.T) {
	w := NewRedisCatalogWriter(newTestRedis(t), "scan")
	ctx := context.Background()

	id1, _, err := w.Upsert(ctx, "tmdb:movie:1", "movie", []byte(`{}`))
	require.NoError(t, err)
	id2, _, err := w.Upsert(ctx, "tmdb:movie:2", "movie", []byte(`{}`))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}
