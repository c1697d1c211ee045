// Copyright 2025 James Ross

// Package mediaio implements the filesystem, ffprobe, HTTP, and disk-cache
// collaborators the actor Table needs: FileWalker, TechnicalProbe,
// MetadataProvider, CatalogWriter, and ImageCache. Each type satisfies one
// interface from internal/actors/collaborators.go and owns nothing about
// job scheduling or retries, mirroring the teacher's pattern of keeping
// I/O collaborators thin and the actor layer in charge of error class.
package mediaio

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reelvault/mediaserver/internal/actors"
)

// mediaExtensions gates which files Walk reports as candidates; directories
// are always reported so FolderScanActor can recurse conceptually (the
// walker itself does the recursion and flattens results).
var mediaExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".m4v": true,
	".wmv": true, ".ts": true, ".webm": true,
}

// Walker is a FileWalker backed directly by the local filesystem. Its
// cursor is "<rootIndex>\x1f<lastPath>": entries are produced in sorted
// order root-by-root, so resuming means skipping everything up to and
// including lastPath within rootIndex and starting fresh on every root
// after it.
type Walker struct{}

// NewWalker builds a filesystem-backed FileWalker.
func NewWalker() *Walker { return &Walker{} }

func (w *Walker) Walk(ctx context.Context, roots []string, cursorState string, batchSize int) ([]actors.DirEntry, string, bool, error) {
	startRoot, lastPath := decodeCursor(cursorState)
	if batchSize <= 0 {
		batchSize = 1
	}

	var entries []actors.DirEntry
	for rootIdx := startRoot; rootIdx < len(roots); rootIdx++ {
		root := roots[rootIdx]
		if _, err := os.Stat(root); err != nil {
			if rootIdx == startRoot {
				return nil, cursorState, false, err
			}
			continue
		}

		paths, err := sortedTree(root)
		if err != nil {
			return nil, cursorState, false, err
		}

		from := 0
		if rootIdx == startRoot && lastPath != "" {
			from = sort.SearchStrings(paths, lastPath) + 1
		}

		for i := from; i < len(paths); i++ {
			if err := ctx.Err(); err != nil {
				return nil, cursorState, false, err
			}
			if len(entries) >= batchSize {
				last := ""
				if i > 0 {
					last = paths[i-1]
				}
				return entries, encodeCursor(rootIdx, last), true, nil
			}
			path := paths[i]
			info, err := os.Lstat(path)
			if err != nil {
				continue
			}
			entries = append(entries, actors.DirEntry{
				Path:       path,
				IsDir:      info.IsDir(),
				ModifiedAt: info.ModTime(),
			})
		}
	}

	return entries, "", false, nil
}

// sortedTree returns every entry under root, sorted, so cursor resumption
// is a stable binary search rather than re-walking from scratch.
func sortedTree(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return fs.SkipDir
			}
			return err
		}
		if path == root {
			return nil
		}
		if !d.IsDir() && !isMediaFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mediaio: walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func isMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

func encodeCursor(rootIdx int, lastPath string) string {
	return fmt.Sprintf("%d\x1f%s", rootIdx, lastPath)
}

func decodeCursor(state string) (int, string) {
	if state == "" {
		return 0, ""
	}
	parts := strings.SplitN(state, "\x1f", 2)
	if len(parts) != 2 {
		return 0, ""
	}
	var idx int
	if _, err := fmt.Sscanf(parts[0], "%d", &idx); err != nil {
		return 0, ""
	}
	return idx, parts[1]
}
