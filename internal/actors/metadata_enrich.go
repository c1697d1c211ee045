// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reelvault/mediaserver/internal/ratelimit"
	"github.com/reelvault/mediaserver/internal/store"
)

// ErrNotFound is returned by MetadataProvider when the lookup key matches
// nothing, a fatal outcome per spec (no amount of retrying will help).
var ErrNotFound = errors.New("actors: metadata not found")

// ErrInvalidAPIKey is returned by MetadataProvider when the provider
// rejects credentials outright. This is a poison condition: spec §7 calls
// for dead-lettering the job and pausing the whole kind's worker pool until
// an operator fixes the key, rather than burning through every queued job's
// retry budget against a guaranteed-failing call.
var ErrInvalidAPIKey = errors.New("actors: invalid metadata provider api key")

// MetadataEnrichActor consults an external MetadataProvider under a
// process-wide rate limit, producing ImageFetch follow-ups and releasing
// the series dependency key on resolution. SeriesLimiter separately bounds
// how many series-identity resolutions (jobs carrying a dependency key) run
// at once, independent of the general provider concurrency cap.
type MetadataEnrichActor struct {
	Provider      MetadataProvider
	Limiter       *ratelimit.Limiter
	SeriesLimiter *ratelimit.Limiter
}

func NewMetadataEnrichActor(provider MetadataProvider, limiter, seriesLimiter *ratelimit.Limiter) *MetadataEnrichActor {
	return &MetadataEnrichActor{Provider: provider, Limiter: limiter, SeriesLimiter: seriesLimiter}
}

func (a *MetadataEnrichActor) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	var payload MetadataEnrichPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Outcome{}, NewError("not_found", false, fmt.Errorf("decode payload: %w", err))
	}

	release, err := a.Limiter.Acquire(ctx)
	if err != nil {
		return Outcome{}, NewError("network_error", true, fmt.Errorf("rate limiter: %w", err))
	}
	defer release()

	if cmd.DependencyKey != "" {
		releaseSeries, err := a.SeriesLimiter.Acquire(ctx)
		if err != nil {
			return Outcome{}, NewError("network_error", true, fmt.Errorf("series resolve limiter: %w", err))
		}
		defer releaseSeries()
	}

	result, err := a.Provider.Lookup(ctx, payload.MediaFileID, payload.ExternalID, payload.Title)
	if err != nil {
		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			return Outcome{}, NewError("rate_limited", true, err)
		case errors.Is(err, ErrNotFound):
			return Outcome{}, NewError("not_found", false, err)
		case errors.Is(err, ErrInvalidAPIKey):
			return Outcome{}, NewPoisonError("invalid_api_key", err)
		default:
			return Outcome{}, NewError("network_error", true, err)
		}
	}

	var followUps []FollowUp
	indexPayload, err := json.Marshal(IndexPayload{
		MediaFileID: payload.MediaFileID,
		Kind:        catalogKindFor(result.IsSeries),
		NaturalKey:  result.ExternalID,
		DeviceKey:   payload.DeviceKey,
	})
	if err != nil {
		return Outcome{}, NewError("not_found", false, err)
	}
	followUps = append(followUps, FollowUp{
		Kind:      store.KindIndex,
		LibraryID: cmd.LibraryID,
		Priority:  store.PriorityNormal,
		DedupeKey: "index:" + payload.MediaFileID,
		Payload:   indexPayload,
	})

	for _, variant := range result.ImageVariants {
		imgPayload, merr := json.Marshal(variant)
		if merr != nil {
			continue
		}
		followUps = append(followUps, FollowUp{
			Kind:      store.KindImageFetch,
			LibraryID: cmd.LibraryID,
			Priority:  store.PriorityLow,
			DedupeKey: "image:" + variant.ImageID,
			Payload:   imgPayload,
		})
	}

	outcome := Outcome{FollowUps: followUps}
	if result.IsSeries && result.SeriesSlug != "" {
		outcome.ReleaseLibraryID = cmd.LibraryID
		outcome.ReleaseKey = cmd.LibraryID + "::" + result.SeriesSlug
	}
	return outcome, nil
}

func catalogKindFor(isSeries bool) string {
	if isSeries {
		return "series"
	}
	return "movie"
}
