// Copyright 2025 James Ross
package actors

import (
	"context"
	"errors"
	"time"

	"github.com/reelvault/mediaserver/internal/cursor"
	"github.com/reelvault/mediaserver/internal/ratelimit"
)

// ErrCorruptFile is returned by TechnicalProbe when a file exists and is
// readable but its contents don't parse as media, distinguishing it from a
// transient I/O probe_failed.
var ErrCorruptFile = errors.New("actors: corrupt media file")

// DirEntry is one filesystem entry a FileWalker yields.
type DirEntry struct {
	Path       string
	IsDir      bool
	ModifiedAt time.Time
}

// FileWalker enumerates filesystem entries under roots, resuming from an
// opaque cursor when non-empty. Implementations own batching: Walk returns
// at most batchSize entries plus the cursor to resume from next time, and
// more=false once the tree is exhausted.
type FileWalker interface {
	Walk(ctx context.Context, roots []string, cursorState string, batchSize int) (entries []DirEntry, nextCursor string, more bool, err error)
}

// TechnicalProbe reads container/codec/duration/resolution from a media
// file, the Analyze actor's sole external dependency.
type TechnicalProbe interface {
	Probe(ctx context.Context, path string) (TechnicalInfo, error)
}

// TechnicalInfo is what a TechnicalProbe reports about one file.
type TechnicalInfo struct {
	Container  string
	Title      string // from container tags, or a cleaned filename fallback
	Codec      string
	Duration   time.Duration
	Width      int
	Height     int
	SeriesSlug string // empty unless the path looks like a series episode
}

// MetadataResult is what a MetadataProvider returns for a successful lookup.
type MetadataResult struct {
	ExternalID    string
	Title         string
	IsSeries      bool
	SeriesSlug    string
	ImageVariants []ImageFetchPayload
}

// RateLimitedError wraps a provider error that also carries a retry-after
// hint, surfaced by MetadataEnrich as a retryable ActorError.
type RateLimitedError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *RateLimitedError) Error() string { return "rate_limited: " + e.Cause.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Cause }

// MetadataProvider is the external lookup service MetadataEnrich consults,
// throttled by the caller via ratelimit.Limiter before every call.
type MetadataProvider interface {
	Lookup(ctx context.Context, mediaFileID, externalID, title string) (MetadataResult, error)
}

// CatalogChange reports whether an Index upsert created or updated a row.
type CatalogChange string

const (
	CatalogCreated CatalogChange = "created"
	CatalogUpdated CatalogChange = "updated"
)

// CatalogWriter upserts catalog rows by natural key, the Index actor's sole
// external dependency.
type CatalogWriter interface {
	Upsert(ctx context.Context, naturalKey, kind string, attributes []byte) (mediaID string, change CatalogChange, err error)
}

// ImageCache ensures a content-addressed image variant exists on disk,
// idempotently, the ImageFetch actor's sole external dependency.
type ImageCache interface {
	Ensure(ctx context.Context, imageID, variantSize string, source ImageSource) error
}

// Collaborators bundles every external dependency the actor Table needs,
// plus the shared cursor repository, metadata rate limiter, series-resolve
// gate, and per-device scan gate that must be process-wide, explicit values
// rather than ambient globals.
type Collaborators struct {
	Walker      FileWalker
	Probe       TechnicalProbe
	Metadata    MetadataProvider
	Catalog     CatalogWriter
	Images      ImageCache
	Cursors     cursor.Repository
	MetaLimit   *ratelimit.Limiter
	SeriesLimit *ratelimit.Limiter // bounds concurrent series-identity resolutions (non-empty DependencyKey)
	DeviceLimit *ratelimit.KeyedGate
}
