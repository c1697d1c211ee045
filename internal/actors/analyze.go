// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/reelvault/mediaserver/internal/ratelimit"
	"github.com/reelvault/mediaserver/internal/store"
)

// AnalyzeActor reads technical metadata for one media file and hands it off
// to MetadataEnrich, gating episodes behind their series' dependency key so
// series-level resolution runs first. DeviceGate bounds how many Analyze
// jobs for the same storage device run concurrently (max_parallel_scans_per_device).
type AnalyzeActor struct {
	Probe      TechnicalProbe
	DeviceGate *ratelimit.KeyedGate
}

func NewAnalyzeActor(probe TechnicalProbe, deviceGate *ratelimit.KeyedGate) *AnalyzeActor {
	return &AnalyzeActor{Probe: probe, DeviceGate: deviceGate}
}

func (a *AnalyzeActor) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	var payload AnalyzePayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Outcome{}, NewError("file_vanished", false, fmt.Errorf("decode payload: %w", err))
	}

	release, err := a.DeviceGate.Acquire(ctx, payload.DeviceKey)
	if err != nil {
		return Outcome{}, NewError("probe_failed", true, fmt.Errorf("device gate: %w", err))
	}
	defer release()

	info, err := a.Probe.Probe(ctx, payload.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Outcome{}, NewError("file_vanished", false, err)
		case errors.Is(err, ErrCorruptFile):
			return Outcome{}, NewError("corrupt_file", true, err)
		default:
			return Outcome{}, NewError("probe_failed", true, err)
		}
	}

	seriesSlug := payload.SeriesSlug
	if seriesSlug == "" {
		seriesSlug = info.SeriesSlug
	}

	metaPayload, err := json.Marshal(MetadataEnrichPayload{
		MediaFileID: payload.PathHash,
		SeriesSlug:  seriesSlug,
		Title:       info.Title,
		DeviceKey:   payload.DeviceKey,
	})
	if err != nil {
		return Outcome{}, NewError("corrupt_file", false, err)
	}

	follow := FollowUp{
		Kind:      store.KindMetadataEnrich,
		LibraryID: cmd.LibraryID,
		Priority:  store.PriorityNormal,
		DedupeKey: "metadata_enrich:" + payload.PathHash,
		Payload:   metaPayload,
	}
	if seriesSlug != "" {
		follow.DependencyKey = cmd.LibraryID + "::" + seriesSlug
	}

	return Outcome{FollowUps: []FollowUp{follow}}, nil
}
