// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/reelvault/mediaserver/internal/actors/fakes"
	"github.com/reelvault/mediaserver/internal/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestMetadataEnrichProducesIndexAndImageFollowUps(t *testing.T) {
	provider := &fakes.MetadataProvider{Results: map[string]MetadataResult{
		"file-1": {ExternalID: "ext-1", Title: "A Movie", ImageVariants: []ImageFetchPayload{
			{ImageID: "img-1", VariantSize: "thumb"},
		}},
	}}
	a := NewMetadataEnrichActor(provider, ratelimit.New(0, 0), ratelimit.New(0, 0))

	payload, _ := json.Marshal(MetadataEnrichPayload{MediaFileID: "file-1", Title: "A Movie"})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Len(t, outcome.FollowUps, 2)
	require.Empty(t, outcome.ReleaseKey)
}

func TestMetadataEnrichReleasesSeriesDependency(t *testing.T) {
	provider := &fakes.MetadataProvider{Results: map[string]MetadataResult{
		"file-2": {ExternalID: "ext-2", IsSeries: true, SeriesSlug: "the-show"},
	}}
	a := NewMetadataEnrichActor(provider, ratelimit.New(0, 0), ratelimit.New(0, 0))

	payload, _ := json.Marshal(MetadataEnrichPayload{MediaFileID: "file-2", SeriesSlug: "the-show"})
	outcome, err := a.Execute(context.Background(), Command{LibraryID: "lib-1", Payload: payload})
	require.NoError(t, err)
	require.Equal(t, "lib-1", outcome.ReleaseLibraryID)
	require.Equal(t, "lib-1::the-show", outcome.ReleaseKey)
}

func TestMetadataEnrichNotFoundIsFatal(t *testing.T) {
	provider := &fakes.MetadataProvider{Errs: map[string]error{"file-3": ErrNotFound}}
	a := NewMetadataEnrichActor(provider, ratelimit.New(0, 0), ratelimit.New(0, 0))

	payload, _ := json.Marshal(MetadataEnrichPayload{MediaFileID: "file-3"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.False(t, ae.Retryable)
	require.Equal(t, ErrClass("not_found"), ae.Class)
}

func TestMetadataEnrichInvalidAPIKeyIsPoison(t *testing.T) {
	provider := &fakes.MetadataProvider{Errs: map[string]error{"file-4": ErrInvalidAPIKey}}
	a := NewMetadataEnrichActor(provider, ratelimit.New(0, 0), ratelimit.New(0, 0))

	payload, _ := json.Marshal(MetadataEnrichPayload{MediaFileID: "file-4"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.True(t, ae.Poison)
	require.False(t, ae.Retryable)
}

func TestMetadataEnrichRateLimitedIsRetryable(t *testing.T) {
	provider := &fakes.MetadataProvider{Errs: map[string]error{
		"file-5": &RateLimitedError{Cause: ErrNotFound},
	}}
	a := NewMetadataEnrichActor(provider, ratelimit.New(0, 0), ratelimit.New(0, 0))

	payload, _ := json.Marshal(MetadataEnrichPayload{MediaFileID: "file-5"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.True(t, ae.Retryable)
	require.Equal(t, ErrClass("rate_limited"), ae.Class)
}
