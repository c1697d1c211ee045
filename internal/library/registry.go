// Copyright 2025 James Ross

// Package library resolves the library ids every job, watcher, and admin
// request carries against the operator-configured set of media libraries.
package library

import "github.com/reelvault/mediaserver/internal/config"

// Library is one configured media library root.
type Library struct {
	ID        string
	Name      string
	RootPaths []string
	Enabled   bool
}

// Registry is a read-only view over the libraries an orchestrator instance
// was configured with. Libraries are fixed at startup; adding or removing
// one requires a config reload and restart.
type Registry struct {
	byID map[string]Library
	ids  []string
}

// NewRegistry builds a Registry from config, preserving configuration order.
func NewRegistry(cfgs []config.LibraryConfig) *Registry {
	r := &Registry{byID: make(map[string]Library, len(cfgs))}
	for _, c := range cfgs {
		lib := Library{ID: c.ID, Name: c.Name, RootPaths: c.RootPaths, Enabled: c.Enabled}
		r.byID[c.ID] = lib
		r.ids = append(r.ids, c.ID)
	}
	return r
}

// Get looks up a library by id.
func (r *Registry) Get(id string) (Library, bool) {
	lib, ok := r.byID[id]
	return lib, ok
}

// Enabled returns every library with scanning currently enabled, in
// configuration order.
func (r *Registry) Enabled() []Library {
	out := make([]Library, 0, len(r.ids))
	for _, id := range r.ids {
		if lib := r.byID[id]; lib.Enabled {
			out = append(out, lib)
		}
	}
	return out
}

// All returns every configured library, in configuration order.
func (r *Registry) All() []Library {
	out := make([]Library, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}
