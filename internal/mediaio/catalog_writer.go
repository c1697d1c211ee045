// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/reelvault/mediaserver/internal/ids"
)

// RedisCatalogWriter is a CatalogWriter that upserts by natural key using a
// Redis hash per catalog row plus a natural-key index, reusing the same
// client the rest of the orchestrator already holds open rather than
// standing up a separate catalog store.
type RedisCatalogWriter struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCatalogWriter builds a CatalogWriter storing rows under
// "<prefix>:catalog:<media_id>" and the natural-key index under
// "<prefix>:catalog_keys".
func NewRedisCatalogWriter(client redis.Cmdable, prefix string) *RedisCatalogWriter {
	return &RedisCatalogWriter{client: client, prefix: prefix}
}

func (w *RedisCatalogWriter) Upsert(ctx context.Context, naturalKey, kind string, attributes []byte) (string, actors.CatalogChange, error) {
	indexKey := w.prefix + ":catalog_keys"
	mediaID, err := w.client.HGet(ctx, indexKey, naturalKey).Result()
	switch {
	case err == redis.Nil:
		mediaID = ids.New().String()
		if err := w.client.HSetNX(ctx, indexKey, naturalKey, mediaID).Err(); err != nil {
			return "", "", fmt.Errorf("mediaio: reserve natural key %s: %w", naturalKey, err)
		}
		// Another writer may have raced us between HGet and HSetNX; trust
		// whatever id ended up in the index.
		mediaID, err = w.client.HGet(ctx, indexKey, naturalKey).Result()
		if err != nil {
			return "", "", fmt.Errorf("mediaio: read back natural key %s: %w", naturalKey, err)
		}
	case err != nil:
		return "", "", fmt.Errorf("mediaio: lookup natural key %s: %w", naturalKey, err)
	}

	rowKey := w.prefix + ":catalog:" + mediaID
	existed, err := w.client.Exists(ctx, rowKey).Result()
	if err != nil {
		return "", "", fmt.Errorf("mediaio: check catalog row %s: %w", mediaID, err)
	}

	if err := w.client.HSet(ctx, rowKey,
		"natural_key", naturalKey,
		"kind", kind,
		"attributes", attributes,
	).Err(); err != nil {
		return "", "", fmt.Errorf("mediaio: write catalog row %s: %w", mediaID, err)
	}

	change := actors.CatalogUpdated
	if existed == 0 {
		change = actors.CatalogCreated
	}
	return mediaID, change, nil
}
