// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/reelvault/mediaserver/internal/actors/fakes"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeProducesMetadataEnrichFollowUp(t *testing.T) {
	probe := &fakes.TechnicalProbe{Results: map[string]TechnicalInfo{
		"/media/movie.mkv": {Container: "mkv", Codec: "h264", Title: "A Movie"},
	}}
	a := NewAnalyzeActor(probe, nil)

	payload, _ := json.Marshal(AnalyzePayload{Path: "/media/movie.mkv", PathHash: "hash1"})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Len(t, outcome.FollowUps, 1)
	require.Equal(t, "metadata_enrich", string(outcome.FollowUps[0].Kind))
	require.Empty(t, outcome.FollowUps[0].DependencyKey)

	var metaPayload MetadataEnrichPayload
	require.NoError(t, json.Unmarshal(outcome.FollowUps[0].Payload, &metaPayload))
	require.Equal(t, "A Movie", metaPayload.Title)
}

func TestAnalyzeSetsDependencyKeyForSeriesEpisode(t *testing.T) {
	probe := &fakes.TechnicalProbe{Results: map[string]TechnicalInfo{
		"/media/show/s01e01.mkv": {SeriesSlug: "the-show"},
	}}
	a := NewAnalyzeActor(probe, nil)

	payload, _ := json.Marshal(AnalyzePayload{Path: "/media/show/s01e01.mkv", PathHash: "hash2"})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, "lib-1::the-show", outcome.FollowUps[0].DependencyKey)
}

func TestAnalyzeFileVanishedIsFatal(t *testing.T) {
	probe := &fakes.TechnicalProbe{Errs: map[string]error{"/gone.mkv": fs.ErrNotExist}}
	a := NewAnalyzeActor(probe, nil)

	payload, _ := json.Marshal(AnalyzePayload{Path: "/gone.mkv"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.False(t, ae.Retryable)
	require.Equal(t, ErrClass("file_vanished"), ae.Class)
}

func TestAnalyzeProbeFailedIsRetryable(t *testing.T) {
	probe := &fakes.TechnicalProbe{Errs: map[string]error{"/flaky.mkv": fs.ErrClosed}}
	a := NewAnalyzeActor(probe, nil)

	payload, _ := json.Marshal(AnalyzePayload{Path: "/flaky.mkv"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.True(t, ae.Retryable)
	require.Equal(t, ErrClass("probe_failed"), ae.Class)
}
