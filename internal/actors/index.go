// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reelvault/mediaserver/internal/ratelimit"
)

// ErrConstraintViolation is returned by CatalogWriter when an upsert
// violates a catalog invariant, indicating an upstream bug rather than a
// transient condition.
var ErrConstraintViolation = errors.New("actors: catalog constraint violation")

// IndexActor upserts catalog rows by natural key. Idempotent: re-running
// the same job always converges to the same row. DeviceGate bounds how many
// Index jobs for the same storage device run concurrently, the same cap
// Analyze enforces (max_parallel_scans_per_device).
type IndexActor struct {
	Catalog    CatalogWriter
	DeviceGate *ratelimit.KeyedGate
}

func NewIndexActor(catalog CatalogWriter, deviceGate *ratelimit.KeyedGate) *IndexActor {
	return &IndexActor{Catalog: catalog, DeviceGate: deviceGate}
}

func (a *IndexActor) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	var payload IndexPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Outcome{}, NewError("constraint_violation", false, fmt.Errorf("decode payload: %w", err))
	}

	release, err := a.DeviceGate.Acquire(ctx, payload.DeviceKey)
	if err != nil {
		return Outcome{}, NewError("store_error", true, fmt.Errorf("device gate: %w", err))
	}
	defer release()

	mediaID, change, err := a.Catalog.Upsert(ctx, payload.NaturalKey, payload.Kind, payload.Attributes)
	if err != nil {
		if errors.Is(err, ErrConstraintViolation) {
			return Outcome{}, NewError("constraint_violation", false, err)
		}
		return Outcome{}, NewError("store_error", true, err)
	}
	return Outcome{ScanProgressNote: fmt.Sprintf("%s media_id=%s", change, mediaID)}, nil
}
