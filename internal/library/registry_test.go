// Copyright 2025 James Ross
package library

import (
	"testing"

	"github.com/reelvault/mediaserver/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetFindsConfiguredLibrary(t *testing.T) {
	r := NewRegistry([]config.LibraryConfig{
		{ID: "lib-1", Name: "Movies", RootPaths: []string{"/media/movies"}, Enabled: true},
	})
	lib, ok := r.Get("lib-1")
	require.True(t, ok)
	require.Equal(t, "Movies", lib.Name)
}

func TestRegistryEnabledExcludesDisabled(t *testing.T) {
	r := NewRegistry([]config.LibraryConfig{
		{ID: "lib-1", Enabled: true},
		{ID: "lib-2", Enabled: false},
	})
	enabled := r.Enabled()
	require.Len(t, enabled, 1)
	require.Equal(t, "lib-1", enabled[0].ID)
}

func TestRegistryGetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Get("nope")
	require.False(t, ok)
}
