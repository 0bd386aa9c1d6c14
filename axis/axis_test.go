// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package axis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapsOutward(t *testing.T) {
	a, err := New("q", 0.03, 0.97, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, a.Min, 1e-9)
	assert.InDelta(t, 1.0, a.Max, 1e-9)
	assert.Equal(t, 11, a.Len())
}

func TestNewAlreadyAligned(t *testing.T) {
	a, err := New("q", 0.0, 1.0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.Min)
	assert.Equal(t, 1.0, a.Max)
	assert.Equal(t, 3, a.Len())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("q", 0, 1, 0)
	require.Error(t, err)
	_, err = New("", 0, 1, 0.1)
	require.Error(t, err)
}

func TestIndexOfRoundTrip(t *testing.T) {
	a, err := New("q", 0.0, 1.0, 0.5)
	require.NoError(t, err)
	for i := 0; i < a.Len(); i++ {
		idx, err := a.IndexOf(a.Coordinate(i))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
}

func TestIndexOfOutOfRange(t *testing.T) {
	a, err := New("q", 0.0, 1.0, 0.5)
	require.NoError(t, err)
	_, err = a.IndexOf(1.5)
	require.Error(t, err)
}

func TestSliceAndRestrict(t *testing.T) {
	a, err := New("q", 0.0, 2.0, 0.5)
	require.NoError(t, err)
	s, err := a.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.5, s.Min)
	assert.Equal(t, 1.0, s.Max)

	start, stop, err := a.Restrict(0.4, 1.6)
	require.NoError(t, err)
	assert.Equal(t, 1, start)
	assert.Equal(t, 4, stop)
}

func TestCompatibleContainsUnion(t *testing.T) {
	a, _ := New("q", 0.0, 1.0, 0.5)
	b, _ := New("Q", 0.5, 2.0, 0.5)
	assert.True(t, a.IsCompatible(b))
	assert.False(t, a.Contains(b))

	u, err := a.Union(b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u.Min)
	assert.Equal(t, 2.0, u.Max)

	c, _ := New("q", 0.0, 2.0, 0.5)
	assert.True(t, c.Contains(a))
}

func TestUnionIncompatible(t *testing.T) {
	a, _ := New("q", 0, 1, 0.5)
	b, _ := New("r", 0, 1, 0.5)
	_, err := a.Union(b)
	require.Error(t, err)
}

func TestRebin(t *testing.T) {
	a, err := New("q", 0.0, 1.5, 0.5)
	require.NoError(t, err)
	left, right, out, err := a.Rebin(2)
	require.NoError(t, err)
	assert.True(t, left >= 0)
	assert.True(t, right >= 0)
	assert.Equal(t, 1.0, out.Res)
}

func TestRebinInvalidFactor(t *testing.T) {
	a, _ := New("q", 0, 1, 0.5)
	_, _, _, err := a.Rebin(3)
	require.Error(t, err)
}

func TestSuggestLabel(t *testing.T) {
	s, ok := SuggestLabel("qx", []string{"qx2", "energy", "wavelength"})
	require.True(t, ok)
	assert.Equal(t, "qx2", s)

	_, ok = SuggestLabel("qx", nil)
	assert.False(t, ok)
}
