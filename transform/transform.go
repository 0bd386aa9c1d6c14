// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package transform re-projects a Space through one or more user-supplied
// coordinate expressions, building a new Space over axes the caller
// describes rather than the ones the source was accumulated on — the
// "project Q onto hkl" step of the pipeline.
package transform

import (
	"math"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
)

// Axis describes one output axis of a transform: its label, bin
// resolution, and the pure function mapping a source coordinate tuple
// (one value per source axis, in source axis order) to this axis's new
// coordinate.
type Axis struct {
	Label string
	Res   float64
	Func  func(coords []float64) float64
}

// Build evaluates every target Axis's Func over the bin-center grid of src,
// determines bounds for each target axis by rounding the evaluated range
// outward to Res, and accumulates src's photons and contributions into a
// freshly allocated Space over those axes. Bins the transform never visits
// remain empty (zero contribution); Build never invents data for them.
func Build(src *space.Space, targets []Axis) (*space.Space, error) {
	if len(targets) == 0 {
		return nil, berrors.E("transform.Build", berrors.DimensionError, "at least one target axis is required")
	}

	shape := src.Shape()
	n := 1
	for _, l := range shape {
		n *= l
	}

	coords := make([][]float64, len(targets))
	for k := range targets {
		coords[k] = make([]float64, n)
	}

	srcCoord := make([]float64, len(shape))
	flat := 0
	walkGrid(shape, func(idx []int) {
		for i, ix := range idx {
			srcCoord[i] = src.Axes[i].Coordinate(ix)
		}
		for k, t := range targets {
			coords[k][flat] = t.Func(srcCoord)
		}
		flat++
	})

	outAxes := make([]axis.Axis, len(targets))
	for k, t := range targets {
		lo, hi := math.Inf(1), math.Inf(-1)
		any := false
		for _, c := range coords[k] {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				continue
			}
			any = true
			if c < lo {
				lo = c
			}
			if c > hi {
				hi = c
			}
		}
		if !any {
			return nil, berrors.E("transform.Build", berrors.OutOfRange, "target axis "+t.Label+" has no finite coordinates")
		}
		a, err := axis.New(t.Label, lo, hi, t.Res)
		if err != nil {
			return nil, err
		}
		outAxes[k] = a
	}

	out, err := space.New(outAxes)
	if err != nil {
		return nil, err
	}

	outShape := out.Shape()
	outStrides := make([]int, len(outShape))
	acc := 1
	for i := len(outShape) - 1; i >= 0; i-- {
		outStrides[i] = acc
		acc *= outShape[i]
	}

	srcFlat := 0
	dims := make([]int, len(targets))
	for i := 0; i < n; i++ {
		ok := true
		for k := range targets {
			c := coords[k][i]
			idx, err := outAxes[k].IndexOf(c)
			if err != nil {
				ok = false
				break
			}
			dims[k] = idx
		}
		if ok {
			flatOut := 0
			for k, d := range dims {
				flatOut += d * outStrides[k]
			}
			out.Photons[flatOut] += src.Photons[srcFlat]
			out.Contributions[flatOut] += src.Contributions[srcFlat]
		}
		srcFlat++
	}
	return out, nil
}

// walkGrid calls fn once for every multi-index over shape, in C order (last
// axis varies fastest), mirroring Space's own flattening order so that flat
// positions line up with the source's Photons/Contributions arrays.
func walkGrid(shape []int, fn func(idx []int)) {
	n := len(shape)
	if n == 0 {
		return
	}
	idx := make([]int, n)
	total := 1
	for _, l := range shape {
		total *= l
	}
	for c := 0; c < total; c++ {
		fn(idx)
		i := n - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
			i--
		}
	}
}
