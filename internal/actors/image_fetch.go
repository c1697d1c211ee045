// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecodeFailed is returned by ImageCache when a fetched image's bytes
// don't decode as an image, retryable up to the job's max_attempts before
// the queue dead-letters it.
var ErrDecodeFailed = errors.New("actors: image decode failed")

// ImageFetchActor ensures a content-addressed image variant exists on disk.
// Idempotent: re-running a job whose variant already exists is a no-op.
type ImageFetchActor struct {
	Images ImageCache
}

func NewImageFetchActor(images ImageCache) *ImageFetchActor {
	return &ImageFetchActor{Images: images}
}

func (a *ImageFetchActor) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	var payload ImageFetchPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Outcome{}, NewError("network_error", false, fmt.Errorf("decode payload: %w", err))
	}

	if err := a.Images.Ensure(ctx, payload.ImageID, payload.VariantSize, payload.Source); err != nil {
		if errors.Is(err, ErrDecodeFailed) {
			return Outcome{}, NewError("decode_failed", true, err)
		}
		return Outcome{}, NewError("network_error", true, err)
	}
	return Outcome{}, nil
}
