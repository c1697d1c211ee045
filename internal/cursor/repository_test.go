// Copyright 2025 James Ross
package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRepository(client, "scan")
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, found, err := repo.Load(context.Background(), "lib-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	st := State{LibraryID: "lib-1", StateBlob: "path=/media/movies/m;offset=42", UpdatedAt: time.Now().UTC()}
	require.NoError(t, repo.Save(ctx, st))

	got, found, err := repo.Load(ctx, "lib-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, st.StateBlob, got.StateBlob)
	require.WithinDuration(t, st.UpdatedAt, got.UpdatedAt, time.Second)
}

func TestDeleteRemovesCursor(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, State{LibraryID: "lib-1", StateBlob: "x", UpdatedAt: time.Now()}))
	require.NoError(t, repo.Delete(ctx, "lib-1"))

	_, found, err := repo.Load(ctx, "lib-1")
	require.NoError(t, err)
	require.False(t, found)
}
