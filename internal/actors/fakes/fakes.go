// Copyright 2025 James Ross

// Package fakes provides in-memory test doubles for the actors package's
// external collaborator interfaces, grounded on the teacher's
// exactly-once-patterns in-memory storage fakes: small, deterministic,
// no mocking framework.
package fakes

import (
	"context"
	"sync"

	"github.com/reelvault/mediaserver/internal/actors"
)

// FileWalker is a scripted actors.FileWalker: it returns Batches in order,
// one per call, ignoring the requested batch size.
type FileWalker struct {
	Batches []WalkBatch
	calls   int
	mu      sync.Mutex
}

type WalkBatch struct {
	Entries    []actors.DirEntry
	NextCursor string
	More       bool
	Err        error
}

func (f *FileWalker) Walk(ctx context.Context, roots []string, cursorState string, batchSize int) ([]actors.DirEntry, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.Batches) {
		return nil, cursorState, false, nil
	}
	b := f.Batches[f.calls]
	f.calls++
	return b.Entries, b.NextCursor, b.More, b.Err
}

// TechnicalProbe returns a scripted result or error per path.
type TechnicalProbe struct {
	Results map[string]actors.TechnicalInfo
	Errs    map[string]error
}

func (p *TechnicalProbe) Probe(ctx context.Context, path string) (actors.TechnicalInfo, error) {
	if err, ok := p.Errs[path]; ok {
		return actors.TechnicalInfo{}, err
	}
	return p.Results[path], nil
}

// MetadataProvider returns a scripted result or error per media file id.
type MetadataProvider struct {
	Results map[string]actors.MetadataResult
	Errs    map[string]error
}

func (m *MetadataProvider) Lookup(ctx context.Context, mediaFileID, externalID, title string) (actors.MetadataResult, error) {
	if err, ok := m.Errs[mediaFileID]; ok {
		return actors.MetadataResult{}, err
	}
	return m.Results[mediaFileID], nil
}

// CatalogWriter records every upsert it receives and returns scripted
// results keyed by natural key.
type CatalogWriter struct {
	mu      sync.Mutex
	Calls   []CatalogCall
	Results map[string]CatalogResult
	Err     error
}

type CatalogCall struct {
	NaturalKey string
	Kind       string
	Attributes []byte
}

type CatalogResult struct {
	MediaID string
	Change  actors.CatalogChange
}

func (c *CatalogWriter) Upsert(ctx context.Context, naturalKey, kind string, attributes []byte) (string, actors.CatalogChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, CatalogCall{NaturalKey: naturalKey, Kind: kind, Attributes: attributes})
	if c.Err != nil {
		return "", "", c.Err
	}
	if r, ok := c.Results[naturalKey]; ok {
		return r.MediaID, r.Change, nil
	}
	return naturalKey, actors.CatalogCreated, nil
}

// ImageCache records every Ensure call and returns a scripted error per
// image id.
type ImageCache struct {
	mu    sync.Mutex
	Calls []string
	Errs  map[string]error
}

func (i *ImageCache) Ensure(ctx context.Context, imageID, variantSize string, source actors.ImageSource) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Calls = append(i.Calls, imageID)
	if i.Errs != nil {
		if err, ok := i.Errs[imageID]; ok {
			return err
		}
	}
	return nil
}
