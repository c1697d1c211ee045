// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/reelvault/mediaserver/internal/actors/fakes"
	"github.com/reelvault/mediaserver/internal/cursor"
	"github.com/stretchr/testify/require"
)

func newTestCursorRepo(t *testing.T) cursor.Repository {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cursor.NewRepository(client, "scan")
}

func TestFolderScanEnqueuesAnalyzePerFile(t *testing.T) {
	walker := &fakes.FileWalker{Batches: []fakes.WalkBatch{
		{Entries: []DirEntry{{Path: "/media/a.mkv"}, {Path: "/media/b.mkv"}}, NextCursor: "cursor-1", More: false},
	}}
	cursors := newTestCursorRepo(t)
	a := NewFolderScanActor(walker, cursors, 200, 2000)

	payload, _ := json.Marshal(FolderScanPayload{RootPaths: []string{"/media"}})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Len(t, outcome.FollowUps, 2)
	for _, f := range outcome.FollowUps {
		require.Equal(t, "analyze", string(f.Kind))
	}

	st, found, err := cursors.Load(context.Background(), "lib-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "cursor-1", st.StateBlob)
}

func TestFolderScanEnqueuesContinuationWhenMore(t *testing.T) {
	walker := &fakes.FileWalker{Batches: []fakes.WalkBatch{
		{Entries: []DirEntry{{Path: "/media/a.mkv"}}, NextCursor: "cursor-2", More: true},
	}}
	cursors := newTestCursorRepo(t)
	a := NewFolderScanActor(walker, cursors, 200, 2000)

	payload, _ := json.Marshal(FolderScanPayload{RootPaths: []string{"/media"}})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)

	var sawContinuation bool
	for _, f := range outcome.FollowUps {
		if f.Kind == "folder_scan" {
			sawContinuation = true
		}
	}
	require.True(t, sawContinuation)
}

func TestFolderScanYieldsAtScanLimit(t *testing.T) {
	walker := &fakes.FileWalker{Batches: []fakes.WalkBatch{
		{Entries: []DirEntry{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}, NextCursor: "cursor-x", More: false},
	}}
	cursors := newTestCursorRepo(t)
	a := NewFolderScanActor(walker, cursors, 200, 1)

	payload, _ := json.Marshal(FolderScanPayload{RootPaths: []string{"/media"}})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)

	var analyzeCount int
	var sawContinuation bool
	for _, f := range outcome.FollowUps {
		if f.Kind == "analyze" {
			analyzeCount++
		}
		if f.Kind == "folder_scan" {
			sawContinuation = true
		}
	}
	require.Equal(t, 1, analyzeCount)
	require.True(t, sawContinuation)
}

func TestFolderScanFiltersByExcludeGlob(t *testing.T) {
	walker := &fakes.FileWalker{Batches: []fakes.WalkBatch{
		{Entries: []DirEntry{{Path: "media/a.mkv"}, {Path: "media/.DS_Store"}}, NextCursor: "c1"},
	}}
	cursors := newTestCursorRepo(t)
	a := NewFolderScanActor(walker, cursors, 200, 2000)

	payload, _ := json.Marshal(FolderScanPayload{RootPaths: []string{"media"}, ExcludeGlobs: []string{"**/.DS_Store"}})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Len(t, outcome.FollowUps, 1)
}

func TestFolderScanMissingRootIsFatal(t *testing.T) {
	cursors := newTestCursorRepo(t)
	a := NewFolderScanActor(&fakes.FileWalker{}, cursors, 200, 2000)

	payload, _ := json.Marshal(FolderScanPayload{})
	_, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.Error(t, err)
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.False(t, ae.Retryable)
	require.Equal(t, ErrClass("root_missing"), ae.Class)
}
