// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
# reduction of scans 17-42
[dispatcher]
type = local
workers = 4
destination = /data/out/total.hdf5

[input]
type: spec
specfile = /data/scan.spec

[Projection]
type = hkl
labels = H, K, L
resolutions = 0.002, 0.002, 0.01
`

func parse(t *testing.T, text string) Config {
	t.Helper()
	cfg, err := Parse(bufio.NewReader(strings.NewReader(text)))
	require.NoError(t, err)
	return cfg
}

func TestParseSections(t *testing.T) {
	cfg := parse(t, sample)

	disp := cfg.Section(SectionDispatcher)
	assert.Equal(t, "local", disp.GetString(TypeKey, ""))
	workers, err := disp.GetInt("workers", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, workers)

	// Section and key lookup is case-insensitive; values keep their case.
	proj := cfg.Section("projection")
	assert.Equal(t, "H, K, L", proj.GetString("LABELS", ""))

	in := cfg.Section(SectionInput)
	assert.Equal(t, "spec", in.GetString(TypeKey, ""))
	assert.Equal(t, "/data/scan.spec", in.GetString("specfile", ""))
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"key = value\n",           // key before any section
		"[dispatcher\ntype = x\n", // unterminated header
		"[dispatcher]\nnot a pair\n",
		"[]\n",
	} {
		_, err := Parse(bufio.NewReader(strings.NewReader(text)))
		require.Error(t, err, "input %q", text)
	}
}

func TestSectionDefaults(t *testing.T) {
	cfg := parse(t, sample)
	missing := cfg.Section("nonexistent")
	assert.Equal(t, "fallback", missing.GetString("anything", "fallback"))

	n, err := missing.GetInt("absent", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	b, err := cfg.Section(SectionDispatcher).GetBool("delete", false)
	require.NoError(t, err)
	assert.False(t, b)
}

func TestGetIntMalformed(t *testing.T) {
	cfg := parse(t, "[dispatcher]\nworkers = many\n")
	_, err := cfg.Section(SectionDispatcher).GetInt("workers", 1)
	require.Error(t, err)
}

type fakePlugin struct {
	name string
	keys []string
}

func (p fakePlugin) Name() string         { return p.name }
func (p fakePlugin) ConfigKeys() []string { return p.keys }

func TestValidateUnknownKeySuggestion(t *testing.T) {
	cfg := parse(t, "[input]\ntype = spec\nspecfle = /data/x.spec\n")
	p := fakePlugin{name: "spec", keys: []string{"specfile", "scans"}}
	err := cfg.Section(SectionInput).Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"specfle"`)
	assert.Contains(t, err.Error(), `"specfile"`)
}

func TestValidateAccepted(t *testing.T) {
	cfg := parse(t, "[input]\ntype = spec\nspecfile = /data/x.spec\n")
	p := fakePlugin{name: "spec", keys: []string{"specfile", "scans"}}
	require.NoError(t, cfg.Section(SectionInput).Validate(p))
}
