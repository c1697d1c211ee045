// Copyright 2025 James Ross
package actors

import "encoding/json"

// FolderScanPayload is the Command.Payload shape for KindFolderScan.
type FolderScanPayload struct {
	RootPaths    []string `json:"root_paths"`
	CursorState  string   `json:"cursor_state"`
	IncludeGlobs []string `json:"include_globs,omitempty"`
	ExcludeGlobs []string `json:"exclude_globs,omitempty"`
}

// AnalyzePayload is the Command.Payload shape for KindAnalyze.
type AnalyzePayload struct {
	Path       string `json:"path"`
	DeviceKey  string `json:"device_key"`
	SeriesSlug string `json:"series_slug,omitempty"`
	PathHash   string `json:"path_hash"`
}

// MetadataEnrichPayload is the Command.Payload shape for KindMetadataEnrich.
type MetadataEnrichPayload struct {
	MediaFileID string `json:"media_file_id"`
	ExternalID  string `json:"external_id,omitempty"`
	SeriesSlug  string `json:"series_slug,omitempty"`
	Title       string `json:"title"`
	DeviceKey   string `json:"device_key,omitempty"`
}

// IndexPayload is the Command.Payload shape for KindIndex.
type IndexPayload struct {
	MediaFileID string          `json:"media_file_id"`
	Kind        string          `json:"catalog_kind"` // movie|series|season|episode
	NaturalKey  string          `json:"natural_key"`
	Attributes  json.RawMessage `json:"attributes"`
	DeviceKey   string          `json:"device_key,omitempty"`
}

// ImageSource discriminates an ImageFetch job's origin.
type ImageSource struct {
	Tmdb             string `json:"tmdb_path,omitempty"`
	EpisodeThumbnail string `json:"episode_thumbnail_media_file_id,omitempty"`
}

// ImageFetchPayload is the Command.Payload shape for KindImageFetch.
type ImageFetchPayload struct {
	ImageID     string      `json:"image_id"`
	VariantSize string      `json:"variant_size"`
	Source      ImageSource `json:"source"`
}
