// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/reelvault/mediaserver/internal/actors"
)

// DiskImageCache is an ImageCache that fetches a source image once per
// (imageID, variantSize) pair and stores it content-addressed under its
// root directory, making Ensure idempotent without needing a separate
// existence index: the path itself doubles as the cache key.
type DiskImageCache struct {
	Root         string
	Client       *http.Client
	ImageBaseURL string // e.g. "https://image.tmdb.org/t/p/original"
}

// NewDiskImageCache builds an ImageCache rooted at dir, creating it if
// necessary. imageBaseURL defaults to TMDB's image CDN when empty.
func NewDiskImageCache(dir string, client *http.Client, imageBaseURL string) (*DiskImageCache, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if imageBaseURL == "" {
		imageBaseURL = "https://image.tmdb.org/t/p/original"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mediaio: create image cache dir: %w", err)
	}
	return &DiskImageCache{Root: dir, Client: client, ImageBaseURL: imageBaseURL}, nil
}

func (c *DiskImageCache) Ensure(ctx context.Context, imageID, variantSize string, source actors.ImageSource) error {
	path := c.variantPath(imageID, variantSize)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("mediaio: stat cached image: %w", err)
	}

	url := c.sourceURL(source)
	if url == "" {
		return fmt.Errorf("mediaio: image %s has no fetchable source", imageID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("mediaio: build image request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("mediaio: fetch image %s: %w", imageID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mediaio: fetch image %s: status %d", imageID, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.Root, "fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("mediaio: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("mediaio: write image %s: %w", imageID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mediaio: close temp file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mediaio: create variant dir: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("mediaio: finalize cached image %s: %w", imageID, err)
	}
	return nil
}

func (c *DiskImageCache) variantPath(imageID, variantSize string) string {
	h := sha256.Sum256([]byte(imageID + "\x00" + variantSize))
	name := hex.EncodeToString(h[:])
	return filepath.Join(c.Root, name[:2], name+".img")
}

func (c *DiskImageCache) sourceURL(source actors.ImageSource) string {
	if source.Tmdb != "" {
		return c.ImageBaseURL + source.Tmdb
	}
	return ""
}
