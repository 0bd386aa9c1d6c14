// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package space implements Space, the N-dimensional regular-grid
// accumulator that the whole reduction pipeline is built around: an ordered
// tuple of named axis.Axis plus two equal-shaped dense arrays (summed
// intensities and contribution counts), and the algebra over it (indexing,
// slicing, projection, addition, subtraction, trimming, rebinning).
package space

import (
	"fmt"
	"strings"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// Space is a dense N-dimensional histogram over a tuple of Axes. Photons
// holds the summed intensity per bin (float64); Contributions holds the
// count of raw samples per bin (uint32). Both are flattened in C (row-major)
// order, with the first axis varying slowest.
//
// A Space with more than one axis requires every axis to carry a (unique,
// case-insensitive) label so it can be resolved by name; a single-axis Space
// may leave its axis unlabeled only in the zero-value sense that New still
// requires a non-empty label from axis.New itself.
//
// The zero value is not a valid Space; use New. A nil *Space is the
// monoidal identity for addition — see Empty.
type Space struct {
	Axes          []axis.Axis
	Photons       []float64
	Contributions []uint32
}

// New allocates an empty Space (all-zero arrays) over axes. Labels must be
// unique case-insensitively when there is more than one axis.
func New(axes []axis.Axis) (*Space, error) {
	if len(axes) == 0 {
		return nil, berrors.E("space.New", berrors.DimensionError, "at least one axis is required")
	}
	if len(axes) > 1 {
		seen := map[string]bool{}
		for _, a := range axes {
			if strings.TrimSpace(a.Label) == "" {
				return nil, berrors.E("space.New", berrors.DimensionError, "axis label is required for multidimensional space")
			}
			key := strings.ToLower(a.Label)
			if seen[key] {
				return nil, berrors.E("space.New", berrors.AmbiguousLabel, fmt.Sprintf("duplicate axis label %q", a.Label))
			}
			seen[key] = true
		}
	}
	n := 1
	for _, a := range axes {
		n *= a.Len()
	}
	return &Space{
		Axes:          append([]axis.Axis(nil), axes...),
		Photons:       make([]float64, n),
		Contributions: make([]uint32, n),
	}, nil
}

// Empty returns the monoidal identity for addition: a nil *Space. Add and
// AddInPlace treat it as "no contribution", so an accumulator can start
// from nothing without special-casing its first operand.
func Empty() *Space { return nil }

// Dimension returns the number of axes.
func (s *Space) Dimension() int { return len(s.Axes) }

// Shape returns the per-axis bin counts, in axis order.
func (s *Space) Shape() []int {
	shape := make([]int, len(s.Axes))
	for i, a := range s.Axes {
		shape[i] = a.Len()
	}
	return shape
}

// strides returns the C-order strides for Shape(), i.e. strides[i] is the
// number of flat elements spanned by one step along axis i.
func strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

// Copy returns a deep copy of s sharing no backing array.
func (s *Space) Copy() *Space {
	out := &Space{
		Axes:          append([]axis.Axis(nil), s.Axes...),
		Photons:       append([]float64(nil), s.Photons...),
		Contributions: append([]uint32(nil), s.Contributions...),
	}
	return out
}

// Bin returns the raw (photon sum, contribution count) at the given
// per-axis integer indices without attempting to represent the result as a
// Space — a scalar view used when a Space index collapses to a single bin.
func (s *Space) Bin(idx ...int) (photon float64, contribution uint32, err error) {
	if len(idx) != len(s.Axes) {
		return 0, 0, berrors.E("space.Bin", berrors.DimensionError, "wrong number of indices")
	}
	shape := s.Shape()
	st := strides(shape)
	flat := 0
	for i, ix := range idx {
		if ix < 0 || ix >= shape[i] {
			return 0, 0, berrors.E("space.Bin", berrors.OutOfRange, fmt.Sprintf("index %d out of range for axis %q", ix, s.Axes[i].Label))
		}
		flat += ix * st[i]
	}
	return s.Photons[flat], s.Contributions[flat], nil
}

// Mean returns the observable mean (photons/contributions) at idx and
// whether the bin is empty (contributions == 0).
func (s *Space) Mean(idx ...int) (mean float64, empty bool, err error) {
	p, c, err := s.Bin(idx...)
	if err != nil {
		return 0, false, err
	}
	if c == 0 {
		return 0, true, nil
	}
	return p / float64(c), false, nil
}

// Masked returns the flattened observable mean (photons/contributions, with
// 0 where contributions == 0) and a parallel "empty" mask, both in the same
// C-order flattening as Photons/Contributions.
func (s *Space) Masked() (mean []float64, empty []bool) {
	mean = make([]float64, len(s.Photons))
	empty = make([]bool, len(s.Photons))
	for i, c := range s.Contributions {
		if c == 0 {
			empty[i] = true
			continue
		}
		mean[i] = s.Photons[i] / float64(c)
	}
	return mean, empty
}

func (s *Space) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Space (%d dimensions)\n", len(s.Axes))
	for _, a := range s.Axes {
		fmt.Fprintf(&b, "  %s\n", a.String())
	}
	return b.String()
}
