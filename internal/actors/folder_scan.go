// Copyright 2025 James Ross
package actors

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/reelvault/mediaserver/internal/cursor"
	"github.com/reelvault/mediaserver/internal/store"
)

// FolderScanActor enumerates a library's filesystem tree in cursor-resumable
// batches, emitting one Analyze job per media-file candidate.
type FolderScanActor struct {
	Walker    FileWalker
	Cursors   cursor.Repository
	BatchSize int
	ScanLimit int // library_scan_limit: max Analyze jobs produced per invocation
}

func NewFolderScanActor(walker FileWalker, cursors cursor.Repository, batchSize, scanLimit int) *FolderScanActor {
	return &FolderScanActor{Walker: walker, Cursors: cursors, BatchSize: batchSize, ScanLimit: scanLimit}
}

func (a *FolderScanActor) Execute(ctx context.Context, cmd Command) (Outcome, error) {
	var payload FolderScanPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Outcome{}, NewError("root_missing", false, fmt.Errorf("decode payload: %w", err))
	}
	if len(payload.RootPaths) == 0 {
		return Outcome{}, NewError("root_missing", false, errors.New("no root paths configured"))
	}

	entries, nextCursor, more, err := a.Walker.Walk(ctx, payload.RootPaths, payload.CursorState, a.BatchSize)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return Outcome{}, NewError("permission_denied", false, err)
		}
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			return Outcome{}, NewError("root_missing", false, err)
		}
		return Outcome{}, NewError("io_error", true, err)
	}

	var followUps []FollowUp
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if !matchesGlobs(entry.Path, payload.IncludeGlobs, payload.ExcludeGlobs) {
			continue
		}
		if len(followUps) >= a.ScanLimit {
			more = true
			break
		}
		followUps = append(followUps, FollowUp{
			Kind:      store.KindAnalyze,
			LibraryID: cmd.LibraryID,
			Priority:  store.PriorityNormal,
			DedupeKey: pathHash(cmd.LibraryID, entry.Path),
			// No per-file device probing yet: library id stands in for
			// device key until storage topology is modeled.
			Payload: mustMarshalAnalyzePayload(entry.Path, cmd.LibraryID),
		})
	}

	if more {
		followUps = append(followUps, FollowUp{
			Kind:      store.KindFolderScan,
			LibraryID: cmd.LibraryID,
			Priority:  store.PriorityLow,
			Payload:   mustMarshalFolderScanPayload(payload.RootPaths, nextCursor, payload.IncludeGlobs, payload.ExcludeGlobs),
		})
	}

	if err := a.Cursors.Save(ctx, cursor.State{LibraryID: cmd.LibraryID, StateBlob: nextCursor}); err != nil {
		return Outcome{}, NewError("io_error", true, fmt.Errorf("persist cursor: %w", err))
	}

	return Outcome{FollowUps: followUps}, nil
}

// matchesGlobs reports whether path should be treated as a candidate:
// included (or no include list at all) and not excluded. Malformed patterns
// are treated as non-matching rather than failing the whole batch.
func matchesGlobs(path string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func pathHash(libraryID, path string) string {
	h := sha1.Sum([]byte(libraryID + "\x00" + path))
	return hex.EncodeToString(h[:])
}

func mustMarshalAnalyzePayload(path, deviceKey string) []byte {
	b, _ := json.Marshal(AnalyzePayload{Path: path, DeviceKey: deviceKey, PathHash: pathHash(deviceKey, path)})
	return b
}

func mustMarshalFolderScanPayload(roots []string, cursorState string, include, exclude []string) []byte {
	b, _ := json.Marshal(FolderScanPayload{RootPaths: roots, CursorState: cursorState, IncludeGlobs: include, ExcludeGlobs: exclude})
	return b
}
