// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package spacefile

import (
	"bytes"
	"context"
	"encoding/binary"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
)

func testSpace(t *testing.T) *space.Space {
	t.Helper()
	aq, err := axis.New("q", 0.0, 1.0, 0.5)
	require.NoError(t, err)
	al, err := axis.New("l", 0.0, 2.0, 1.0)
	require.NoError(t, err)
	s, err := space.New([]axis.Axis{aq, al})
	require.NoError(t, err)
	s.Photons = []float64{1, 0, 3.5, 0, 0, 6, 7.25, 0, 9}
	s.Contributions = []uint32{1, 0, 2, 0, 0, 3, 4, 0, 5}
	return s
}

func TestRoundTrip(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "space.hdf5")

	s := testSpace(t)
	require.NoError(t, WriteAtomic(ctx, path, s))

	got, err := ReadSpace(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, s.Axes, got.Axes)
	assert.Equal(t, s.Photons, got.Photons)
	assert.Equal(t, s.Contributions, got.Contributions)
}

func TestReadAxesOnly(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "space.hdf5")

	s := testSpace(t)
	require.NoError(t, WriteAtomic(ctx, path, s))

	axes, err := ReadAxesOnly(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, s.Axes, axes)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "space.hdf5")
	require.NoError(t, WriteAtomic(ctx, path, testSpace(t)))

	entries, err := ioutil.ReadDir(tempDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestReadCorruptBlob(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	path := filepath.Join(tempDir, "space.hdf5")
	require.NoError(t, WriteAtomic(ctx, path, testSpace(t)))

	raw, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0xff
	require.NoError(t, ioutil.WriteFile(path, raw, 0644))

	_, err = ReadSpace(ctx, path)
	require.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	_, err := ReadSpace(context.Background(), filepath.Join(tempDir, "nope.hdf5"))
	require.Error(t, err)
	assert.True(t, berrors.Is(berrors.IOError, err))
}

func TestUnrecognizedMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("XXXX")
	buf.WriteByte(9)
	_, err := decode(buf.Bytes())
	require.Error(t, err)
	assert.True(t, berrors.Is(berrors.FormatError, err))
}

// TestLegacyDecode builds a legacy blob by hand: the old magic and version,
// the outer container label the old writer nested the axes under, the axes,
// and the arrays without checksums.
func TestLegacyDecode(t *testing.T) {
	s := testSpace(t)

	var body bytes.Buffer
	body.WriteString(magicLegacy)
	body.WriteByte(versionLegacy)
	writeString(&body, "Space")
	writeAxes(&body, s.Axes)
	writeShape(&body, s.Shape())
	// Legacy arrays: length prefix, no checksum.
	photonsRaw := encodeFloat64sRaw(s.Photons)
	writeUint64(&body, uint64(len(photonsRaw)))
	body.Write(photonsRaw)
	contribsRaw := encodeUint32sRaw(s.Contributions)
	writeUint64(&body, uint64(len(contribsRaw)))
	body.Write(contribsRaw)

	got, err := decode(body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s.Axes, got.Axes)
	assert.Equal(t, s.Photons, got.Photons)
	assert.Equal(t, s.Contributions, got.Contributions)

	axes, err := decodeAxesOnly(body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s.Axes, axes)
}

func encodeFloat64sRaw(vals []float64) []byte {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	return raw
}

func encodeUint32sRaw(vals []uint32) []byte {
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(raw[i*4:], v)
	}
	return raw
}
