// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/reelvault/mediaserver/internal/actors/fakes"
	"github.com/stretchr/testify/require"
)

func TestImageFetchEnsuresVariant(t *testing.T) {
	cache := &fakes.ImageCache{}
	a := NewImageFetchActor(cache)

	payload, _ := json.Marshal(ImageFetchPayload{ImageID: "img-1", VariantSize: "thumb"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	require.NoError(t, err)
	require.Equal(t, []string{"img-1"}, cache.Calls)
}

func TestImageFetchDecodeFailedIsRetryable(t *testing.T) {
	cache := &fakes.ImageCache{Errs: map[string]error{"img-2": ErrDecodeFailed}}
	a := NewImageFetchActor(cache)

	payload, _ := json.Marshal(ImageFetchPayload{ImageID: "img-2"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.True(t, ae.Retryable)
	require.Equal(t, ErrClass("decode_failed"), ae.Class)
}
