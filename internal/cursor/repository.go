// Copyright 2025 James Ross

// Package cursor persists per-library scan cursors so a FolderScan actor can
// resume enumeration without rescanning already-visited subtrees. Grounded
// on the teacher's internal/store patterns of a thin Redis-backed repository
// behind a small interface, one hash per entity keyed by id.
package cursor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// State is the opaque resumption state FolderScan persists between batches.
type State struct {
	LibraryID string
	StateBlob string
	UpdatedAt time.Time
}

// Repository loads and saves per-library scan cursors.
type Repository interface {
	Load(ctx context.Context, libraryID string) (State, bool, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, libraryID string) error
}

type redisRepository struct {
	client redis.Cmdable
	prefix string
}

// NewRepository builds a Repository storing cursors as hashes under
// "<prefix>:scan_cursors:<library_id>".
func NewRepository(client redis.Cmdable, prefix string) Repository {
	return &redisRepository{client: client, prefix: prefix}
}

func (r *redisRepository) key(libraryID string) string {
	return fmt.Sprintf("%s:scan_cursors:%s", r.prefix, libraryID)
}

func (r *redisRepository) Load(ctx context.Context, libraryID string) (State, bool, error) {
	res, err := r.client.HGetAll(ctx, r.key(libraryID)).Result()
	if err != nil {
		return State{}, false, fmt.Errorf("cursor: load %s: %w", libraryID, err)
	}
	if len(res) == 0 {
		return State{}, false, nil
	}
	st := State{LibraryID: libraryID, StateBlob: res["state_blob"]}
	if ts, ok := res["updated_at"]; ok {
		if unix, perr := parseUnix(ts); perr == nil {
			st.UpdatedAt = time.Unix(unix, 0).UTC()
		}
	}
	return st, true, nil
}

func (r *redisRepository) Save(ctx context.Context, st State) error {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	err := r.client.HSet(ctx, r.key(st.LibraryID),
		"state_blob", st.StateBlob,
		"updated_at", updatedAt.Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("cursor: save %s: %w", st.LibraryID, err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, libraryID string) error {
	if err := r.client.Del(ctx, r.key(libraryID)).Err(); err != nil {
		return fmt.Errorf("cursor: delete %s: %w", libraryID, err)
	}
	return nil
}

func parseUnix(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
