// Copyright 2025 James Ross
package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/reelvault/mediaserver/internal/actors/fakes"
	"github.com/stretchr/testify/require"
)

func TestIndexUpsertsByNaturalKey(t *testing.T) {
	catalog := &fakes.CatalogWriter{}
	a := NewIndexActor(catalog, nil)

	payload, _ := json.Marshal(IndexPayload{NaturalKey: "nk-1", Kind: "movie"})
	outcome, err := a.Execute(context.Background(), Command{Payload: payload})
	require.NoError(t, err)
	require.Len(t, catalog.Calls, 1)
	require.Equal(t, "nk-1", catalog.Calls[0].NaturalKey)
	require.Contains(t, outcome.ScanProgressNote, "nk-1")
}

func TestIndexConstraintViolationIsFatal(t *testing.T) {
	catalog := &fakes.CatalogWriter{Err: ErrConstraintViolation}
	a := NewIndexActor(catalog, nil)

	payload, _ := json.Marshal(IndexPayload{NaturalKey: "nk-2"})
	_, err := a.Execute(context.Background(), Command{Payload: payload})
	var ae *ActorError
	require.ErrorAs(t, err, &ae)
	require.False(t, ae.Retryable)
}
