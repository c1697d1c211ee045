// Copyright 2025 James Ross
package mediaio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeriesSlugMatchesEpisodeMarker(t *testing.T) {
	slug := seriesSlug("/media/tv/Some.Show.S02E05.mkv")
	require.Equal(t, "some-show", slug)
}

func TestSeriesSlugEmptyForMovies(t *testing.T) {
	require.Empty(t, seriesSlug("/media/movies/A Movie (2020).mkv"))
}

func TestSeriesSlugStableAcrossEpisodes(t *testing.T) {
	require.Equal(t, seriesSlug("/media/tv/Some.Show.S02E05.mkv"), seriesSlug("/media/tv/Some.Show.S02E06.mkv"))
}

func TestSeriesSlugMatchesResolvedTitleSlug(t *testing.T) {
	// The dependency key an episode's Analyze job emits must equal the
	// release key MetadataEnrich reports once it resolves the series
	// title, or dependent episodes never release.
	require.Equal(t, slugify("Some Show"), seriesSlug("/media/tv/Some.Show.S02E05.mkv"))
}

func TestSlugifyCollapsesPunctuation(t *testing.T) {
	require.Equal(t, "a-movie-2020", slugify("A Movie: 2020!"))
}

func TestTitleFromPathSeriesDropsEpisodeMarker(t *testing.T) {
	require.Equal(t, "Some Show", titleFromPath("/media/tv/Some.Show.S02E05.mkv"))
}

func TestTitleFromPathMovie(t *testing.T) {
	require.Equal(t, "A Movie (2020)", titleFromPath("/media/movies/A_Movie_(2020).mkv"))
}
