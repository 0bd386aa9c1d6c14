// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"fmt"
	"strings"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/config"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// BackendMaker builds a Backend from its [input] config section. Name is
// what the section's "type" key selects; ConfigKeys enumerates the keys the
// backend understands, so the loader can reject typos before a run starts.
type BackendMaker interface {
	Name() string
	ConfigKeys() []string
	New(sec config.Section) (Backend, error)
}

// ProjectionMaker is the projection-side counterpart of BackendMaker,
// selected by the [projection] section's "type" key.
type ProjectionMaker interface {
	Name() string
	ConfigKeys() []string
	New(sec config.Section) (Projection, error)
}

// Registry holds the known backend and projection makers. It is a plain
// value constructed and populated by the process entry point and passed
// down explicitly; there is no package-level registration.
type Registry struct {
	backends    map[string]BackendMaker
	projections map[string]ProjectionMaker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		backends:    map[string]BackendMaker{},
		projections: map[string]ProjectionMaker{},
	}
}

// RegisterBackend adds m under its (case-insensitive) name.
func (r *Registry) RegisterBackend(m BackendMaker) {
	r.backends[strings.ToLower(m.Name())] = m
}

// RegisterProjection adds m under its (case-insensitive) name.
func (r *Registry) RegisterProjection(m ProjectionMaker) {
	r.projections[strings.ToLower(m.Name())] = m
}

// Backend looks a BackendMaker up by name, suggesting the closest
// registered name when the lookup misses.
func (r *Registry) Backend(name string) (BackendMaker, error) {
	if m, ok := r.backends[strings.ToLower(name)]; ok {
		return m, nil
	}
	return nil, unknownType("backend", name, backendNames(r.backends))
}

// Projection looks a ProjectionMaker up by name.
func (r *Registry) Projection(name string) (ProjectionMaker, error) {
	if m, ok := r.projections[strings.ToLower(name)]; ok {
		return m, nil
	}
	names := make([]string, 0, len(r.projections))
	for n := range r.projections {
		names = append(names, n)
	}
	return nil, unknownType("projection", name, names)
}

func backendNames(m map[string]BackendMaker) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	return names
}

func unknownType(kind, name string, known []string) error {
	msg := fmt.Sprintf("no %s named %q", kind, name)
	if suggestion, ok := axis.SuggestLabel(name, known); ok {
		msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
	}
	return berrors.E("dispatch.Registry", berrors.UnknownLabel, msg)
}
