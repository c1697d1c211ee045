// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelvault/mediaserver/internal/actors"
	"github.com/stretchr/testify/require"
)

func TestLookupByTitleReturnsFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/multi", r.URL.Path)
		require.Equal(t, "secret", r.URL.Query().Get("api_key"))
		_ = json.NewEncoder(w).Encode(tmdbSearchPage{
			Results: []tmdbSearchEntry{{ID: 42, MediaType: "movie", Title: "A Movie", PosterPath: "/p.jpg"}},
		})
	}))
	defer srv.Close()

	p := NewTMDBProvider(srv.URL, "secret", 0)
	result, err := p.Lookup(context.Background(), "file-1", "", "A Movie")
	require.NoError(t, err)
	require.Equal(t, "42", result.ExternalID)
	require.False(t, result.IsSeries)
	require.Len(t, result.ImageVariants, 1)
}

func TestLookupByIDIncludesLogoVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/movie/42", r.URL.Path)
		require.Equal(t, "images", r.URL.Query().Get("append_to_response"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"title":         "A Movie",
			"poster_path":   "/p.jpg",
			"backdrop_path": "/b.jpg",
			"images": map[string]interface{}{
				"logos": []map[string]string{{"file_path": "/logo.svg"}},
			},
		})
	}))
	defer srv.Close()

	p := NewTMDBProvider(srv.URL, "secret", 0)
	result, err := p.Lookup(context.Background(), "file-1", "42", "")
	require.NoError(t, err)
	require.Len(t, result.ImageVariants, 3)
	require.Equal(t, "logo-42", result.ImageVariants[2].ImageID)
	require.Equal(t, "/logo.svg", result.ImageVariants[2].Source.Tmdb)
}

func TestLookupNotFoundWhenNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tmdbSearchPage{})
	}))
	defer srv.Close()

	p := NewTMDBProvider(srv.URL, "secret", 0)
	_, err := p.Lookup(context.Background(), "file-2", "", "Nothing")
	require.ErrorIs(t, err, actors.ErrNotFound)
}

func TestLookupInvalidAPIKeyOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewTMDBProvider(srv.URL, "bad-key", 0)
	_, err := p.Lookup(context.Background(), "file-3", "", "Anything")
	require.ErrorIs(t, err, actors.ErrInvalidAPIKey)
}

func TestLookupRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewTMDBProvider(srv.URL, "secret", 0)
	_, err := p.Lookup(context.Background(), "file-4", "", "Anything")
	var rl *actors.RateLimitedError
	require.ErrorAs(t, err, &rl)
}
