// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package aggregate implements the image-to-bins aggregation kernel: the hot
// path that turns one frame's per-pixel coordinate/intensity arrays into
// contributions to a Space, by flattening N-D bin indices into a linear
// index and accumulating photons/contributions via grouped summation.
package aggregate

import (
	"math"

	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
)

// Options controls per-pixel error tolerance for Image.
type Options struct {
	// SkipOutOfRange, when true, drops individual pixels whose coordinate
	// falls outside an axis instead of failing the whole frame. With the
	// default (false), any out-of-range pixel is a hard error for the
	// frame. The dispatcher sets this when it wants to tolerate sparse
	// geometry artifacts at the pixel level instead of the frame level.
	SkipOutOfRange bool
}

// Image accumulates one frame's pixel coordinates and intensities into s.
// coords must hold one []float64 per axis of s, all the same length as
// intensity. Non-finite intensities are dropped before binning. It returns
// the number of pixels skipped (NaN/Inf intensity, plus any per-pixel
// out-of-range skips under Options.SkipOutOfRange).
func Image(s *space.Space, coords [][]float64, intensity []float64, opts Options) (skipped int, err error) {
	if len(coords) != s.Dimension() {
		return 0, berrors.E("aggregate.Image", berrors.DimensionError, "number of coordinate arrays must match number of axes")
	}
	n := len(intensity)
	for _, c := range coords {
		if len(c) != n {
			return 0, berrors.E("aggregate.Image", berrors.DimensionError, "coordinate arrays must be the same length as intensity")
		}
	}

	shape := s.Shape()
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}

	validCount := 0
	for i := 0; i < n; i++ {
		if math.IsNaN(intensity[i]) || math.IsInf(intensity[i], 0) {
			continue
		}
		validCount++
		if opts.SkipOutOfRange {
			continue
		}
		// Range-check every pixel before touching s, so a frame that fails
		// leaves no partial contribution behind.
		for j, ax := range s.Axes {
			if _, err := ax.IndexOf(coords[j][i]); err != nil {
				return 0, err
			}
		}
	}
	skipped = n - validCount
	if validCount == 0 {
		return skipped, nil
	}

	for i := 0; i < n; i++ {
		v := intensity[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		flat := 0
		pixelOK := true
		for j, ax := range s.Axes {
			idx, idxErr := ax.IndexOf(coords[j][i])
			if idxErr != nil {
				if opts.SkipOutOfRange {
					pixelOK = false
					break
				}
				return skipped, idxErr
			}
			flat += idx * strides[j]
		}
		if !pixelOK {
			skipped++
			continue
		}
		s.Photons[flat] += v
		s.Contributions[flat]++
	}
	return skipped, nil
}
