// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrf-id03/binoculars/config"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// fakeBackendMaker builds the in-memory backend used throughout the
// dispatch tests; keys lists the config keys it claims to understand.
type fakeBackendMaker struct {
	name    string
	keys    []string
	backend *fakeBackend
}

func (m *fakeBackendMaker) Name() string         { return m.name }
func (m *fakeBackendMaker) ConfigKeys() []string { return m.keys }

func (m *fakeBackendMaker) New(sec config.Section) (Backend, error) {
	return m.backend, nil
}

type fakeProjectionMaker struct {
	name string
	keys []string
}

func (m *fakeProjectionMaker) Name() string         { return m.name }
func (m *fakeProjectionMaker) ConfigKeys() []string { return m.keys }

func (m *fakeProjectionMaker) New(sec config.Section) (Projection, error) {
	return identityProjection{}, nil
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterBackend(&fakeBackendMaker{name: "spec", backend: &fakeBackend{}})
	reg.RegisterProjection(&fakeProjectionMaker{name: "hkl"})

	bm, err := reg.Backend("spec")
	require.NoError(t, err)
	assert.Equal(t, "spec", bm.Name())

	// Lookup is case-insensitive, like axis labels.
	bm, err = reg.Backend("SPEC")
	require.NoError(t, err)
	assert.Equal(t, "spec", bm.Name())

	pm, err := reg.Projection("HKL")
	require.NoError(t, err)
	assert.Equal(t, "hkl", pm.Name())
}

func TestRegistryUnknownBackendSuggestion(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterBackend(&fakeBackendMaker{name: "spec", backend: &fakeBackend{}})

	_, err := reg.Backend("spce")
	require.Error(t, err)
	assert.True(t, berrors.Is(berrors.UnknownLabel, err))
	assert.Contains(t, err.Error(), `"spce"`)
	assert.Contains(t, err.Error(), `"spec"`)
}

func TestRegistryUnknownProjectionEmpty(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Projection("hkl")
	require.Error(t, err)
	assert.True(t, berrors.Is(berrors.UnknownLabel, err))
	// Nothing registered, so no suggestion is offered.
	assert.NotContains(t, err.Error(), "did you mean")
}
