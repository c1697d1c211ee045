// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reelvault/mediaserver/internal/actors"
)

// TMDBProvider is a MetadataProvider backed by a TMDB-shaped search API:
// GET {base}/search/multi?api_key=...&query=... returning a paginated
// results envelope, grounded on the discover/search query and pagination
// shape used by TMDB-style providers. A bare title search is used rather
// than a typed discover query since MetadataEnrich only ever has a free
// text title plus an optional already-known external id.
type TMDBProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewTMDBProvider builds a MetadataProvider against baseURL (e.g.
// "https://api.themoviedb.org/3").
func NewTMDBProvider(baseURL, apiKey string, timeout time.Duration) *TMDBProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TMDBProvider{BaseURL: baseURL, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

type tmdbSearchPage struct {
	Page         int               `json:"page"`
	TotalResults int               `json:"total_results"`
	Results      []tmdbSearchEntry `json:"results"`
}

type tmdbSearchEntry struct {
	ID           int    `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"` // tv entries use "name" instead of "title"
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	Images       struct {
		Logos []struct {
			FilePath string `json:"file_path"`
		} `json:"logos"`
	} `json:"images"` // only populated on lookupByID, which requests append_to_response=images
}

func (p *TMDBProvider) Lookup(ctx context.Context, mediaFileID, externalID, title string) (actors.MetadataResult, error) {
	if externalID != "" {
		return p.lookupByID(ctx, externalID)
	}
	return p.searchByTitle(ctx, title)
}

func (p *TMDBProvider) searchByTitle(ctx context.Context, title string) (actors.MetadataResult, error) {
	q := url.Values{}
	q.Set("api_key", p.APIKey)
	q.Set("query", title)
	q.Set("page", "1")

	page, err := p.get(ctx, "/search/multi?"+q.Encode())
	if err != nil {
		return actors.MetadataResult{}, err
	}
	var decoded tmdbSearchPage
	if err := json.Unmarshal(page, &decoded); err != nil {
		return actors.MetadataResult{}, fmt.Errorf("mediaio: decode tmdb search response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return actors.MetadataResult{}, actors.ErrNotFound
	}
	return toMetadataResult(decoded.Results[0]), nil
}

func (p *TMDBProvider) lookupByID(ctx context.Context, externalID string) (actors.MetadataResult, error) {
	q := url.Values{}
	q.Set("api_key", p.APIKey)
	q.Set("append_to_response", "images")
	body, err := p.get(ctx, "/movie/"+url.PathEscape(externalID)+"?"+q.Encode())
	if err != nil {
		return actors.MetadataResult{}, err
	}
	var entry tmdbSearchEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return actors.MetadataResult{}, fmt.Errorf("mediaio: decode tmdb lookup response: %w", err)
	}
	entry.ID, _ = strconv.Atoi(externalID)
	return toMetadataResult(entry), nil
}

func (p *TMDBProvider) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("mediaio: build tmdb request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mediaio: tmdb request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, actors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, actors.ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		retryAfter := 5 * time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return nil, &actors.RateLimitedError{RetryAfter: retryAfter, Cause: fmt.Errorf("mediaio: tmdb rate limited")}
	default:
		return nil, fmt.Errorf("mediaio: tmdb returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mediaio: read tmdb response: %w", err)
	}
	return body, nil
}

func toMetadataResult(entry tmdbSearchEntry) actors.MetadataResult {
	title := entry.Title
	isSeries := entry.MediaType == "tv"
	if title == "" {
		title = entry.Name
		isSeries = true
	}
	result := actors.MetadataResult{
		ExternalID: strconv.Itoa(entry.ID),
		Title:      title,
		IsSeries:   isSeries,
	}
	if isSeries {
		result.SeriesSlug = slugify(title)
	}
	if entry.PosterPath != "" {
		result.ImageVariants = append(result.ImageVariants, actors.ImageFetchPayload{
			ImageID:     fmt.Sprintf("poster-%s", result.ExternalID),
			VariantSize: "w500",
			Source:      actors.ImageSource{Tmdb: entry.PosterPath},
		})
	}
	if entry.BackdropPath != "" {
		result.ImageVariants = append(result.ImageVariants, actors.ImageFetchPayload{
			ImageID:     fmt.Sprintf("backdrop-%s", result.ExternalID),
			VariantSize: "original",
			Source:      actors.ImageSource{Tmdb: entry.BackdropPath},
		})
	}
	if len(entry.Images.Logos) > 0 {
		// Logos are vector/transparent art; TMDB recommends serving them at
		// their original resolution rather than a resized variant.
		result.ImageVariants = append(result.ImageVariants, actors.ImageFetchPayload{
			ImageID:     fmt.Sprintf("logo-%s", result.ExternalID),
			VariantSize: "original",
			Source:      actors.ImageSource{Tmdb: entry.Images.Logos[0].FilePath},
		})
	}
	return result
}
