// Copyright 2025 James Ross
package actors

import "github.com/reelvault/mediaserver/internal/store"

// NewTable wires one actor per job kind from a Collaborators bundle,
// matching FolderScanActor's need for batch/scan-limit constants the other
// actors don't take.
func NewTable(c Collaborators, batchSize, scanLimit int) Table {
	return Table{
		store.KindFolderScan:     NewFolderScanActor(c.Walker, c.Cursors, batchSize, scanLimit),
		store.KindAnalyze:        NewAnalyzeActor(c.Probe, c.DeviceLimit),
		store.KindMetadataEnrich: NewMetadataEnrichActor(c.Metadata, c.MetaLimit, c.SeriesLimit),
		store.KindIndex:          NewIndexActor(c.Catalog, c.DeviceLimit),
		store.KindImageFetch:     NewImageFetchActor(c.Images),
	}
}
