// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package space

import (
	"fmt"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

func checkSameDimAndCompatible(op string, a, b *Space) error {
	if len(a.Axes) != len(b.Axes) {
		return berrors.E(op, berrors.DimensionError, "spaces have different number of axes")
	}
	for i := range a.Axes {
		if !a.Axes[i].IsCompatible(b.Axes[i]) {
			return berrors.E(op, berrors.AxisMismatch, fmt.Sprintf("axis %d (%q vs %q) is not compatible", i, a.Axes[i].Label, b.Axes[i].Label))
		}
	}
	return nil
}

// Add returns a new Space whose axes are the union of a's and b's, with both
// operands' photons/contributions accumulated into it. Either operand may be
// Empty() (nil), in which case the other is returned as a copy — the
// monoidal identity law: Empty() is the additive identity.
func Add(a, b *Space) (*Space, error) {
	if a == nil && b == nil {
		return nil, nil
	}
	if a == nil {
		return b.Copy(), nil
	}
	if b == nil {
		return a.Copy(), nil
	}
	if err := checkSameDimAndCompatible("space.Add", a, b); err != nil {
		return nil, err
	}
	unionAxes := make([]axis.Axis, len(a.Axes))
	for i := range a.Axes {
		u, err := a.Axes[i].Union(b.Axes[i])
		if err != nil {
			return nil, err
		}
		unionAxes[i] = u
	}
	out, err := New(unionAxes)
	if err != nil {
		return nil, err
	}
	if err := out.AddInPlace(a); err != nil {
		return nil, err
	}
	if err := out.AddInPlace(b); err != nil {
		return nil, err
	}
	return out, nil
}

// AddInPlace accumulates other into s. If other's axes each fit within s's
// axes (Contains), the addition is performed directly into the aligned
// sub-slice of s without reallocating; otherwise AddInPlace resizes s to the
// union first (by delegating to Add and replacing s's contents), so that the
// in-place form never re-allocates when other fits.
//
// other == nil (Empty()) is a no-op, completing the monoid identity law.
func (s *Space) AddInPlace(other *Space) error {
	if other == nil {
		return nil
	}
	if err := checkSameDimAndCompatible("space.AddInPlace", s, other); err != nil {
		return err
	}
	fits := true
	for i := range s.Axes {
		if !s.Axes[i].Contains(other.Axes[i]) {
			fits = false
			break
		}
	}
	if !fits {
		grown, err := Add(s, other)
		if err != nil {
			return err
		}
		*s = *grown
		return nil
	}

	shape := s.Shape()
	st := strides(shape)
	otherShape := other.Shape()

	offsets := make([]int, len(s.Axes))
	for i := range s.Axes {
		idx, err := s.Axes[i].IndexOf(other.Axes[i].Min)
		if err != nil {
			return err
		}
		offsets[i] = idx
	}

	starts := offsets
	stops := make([]int, len(offsets))
	for i := range offsets {
		stops[i] = offsets[i] + otherShape[i]
	}

	otherFlat := 0
	odometer(starts, stops, func(idx []int) {
		flat := 0
		for i, ix := range idx {
			flat += ix * st[i]
		}
		s.Photons[flat] += other.Photons[otherFlat]
		s.Contributions[flat] += other.Contributions[otherFlat]
		otherFlat++
	})
	return nil
}

// Sub returns a new Space with b's photons subtracted from a's, requiring
// identical axes and identical contribution arrays (i.e. the same sampling
// support); otherwise it fails with IncompatibleSubtract.
func Sub(a, b *Space) (*Space, error) {
	if err := checkIdenticalSupport(a, b); err != nil {
		return nil, err
	}
	out := a.Copy()
	for i := range out.Photons {
		out.Photons[i] -= b.Photons[i]
	}
	return out, nil
}

func checkIdenticalSupport(a, b *Space) error {
	if len(a.Axes) != len(b.Axes) {
		return berrors.E("space.Sub", berrors.IncompatibleSubtract, "spaces have different number of axes")
	}
	for i := range a.Axes {
		if !a.Axes[i].Equal(b.Axes[i]) {
			return berrors.E("space.Sub", berrors.IncompatibleSubtract, "axes are not identical")
		}
	}
	for i := range a.Contributions {
		if a.Contributions[i] != b.Contributions[i] {
			return berrors.E("space.Sub", berrors.IncompatibleSubtract, "contributions are not identical")
		}
	}
	return nil
}

// Trim shrinks every axis in place to the tightest bounding box of bins with
// Contributions > 0, preserving the values of all non-empty cells. It is a
// no-op when every bin already has a contribution.
func (s *Space) Trim() error {
	shape := s.Shape()
	st := strides(shape)

	mins := make([]int, len(shape))
	maxs := make([]int, len(shape))
	for i := range mins {
		mins[i] = -1
		maxs[i] = -1
	}
	anyNonEmpty := false
	odometer(make([]int, len(shape)), shape, func(idx []int) {
		flat := 0
		for i, ix := range idx {
			flat += ix * st[i]
		}
		if s.Contributions[flat] == 0 {
			return
		}
		anyNonEmpty = true
		for i, ix := range idx {
			if mins[i] == -1 || ix < mins[i] {
				mins[i] = ix
			}
			if ix > maxs[i] {
				maxs[i] = ix
			}
		}
	})
	if !anyNonEmpty {
		return nil
	}

	newAxes := make([]axis.Axis, len(s.Axes))
	starts := make([]int, len(s.Axes))
	stops := make([]int, len(s.Axes))
	for i, a := range s.Axes {
		na, err := a.Slice(mins[i], maxs[i]+1)
		if err != nil {
			return err
		}
		newAxes[i] = na
		starts[i] = mins[i]
		stops[i] = maxs[i] + 1
	}

	out, err := New(newAxes)
	if err != nil {
		return err
	}
	outIdx := 0
	odometer(starts, stops, func(idx []int) {
		flat := 0
		for i, ix := range idx {
			flat += ix * st[i]
		}
		out.Photons[outIdx] = s.Photons[flat]
		out.Contributions[outIdx] = s.Contributions[flat]
		outIdx++
	})
	*s = *out
	return nil
}

// Rebin coarsens every axis by the given positive even integer factors (one
// per axis), returning a new Space with totals preserved exactly: the arrays
// are zero-padded by (pad + factor/2) on each side per axis, then summed in
// contiguous factor-wide blocks.
func Rebin(s *Space, factors []int) (*Space, error) {
	if len(factors) != len(s.Axes) {
		return nil, berrors.E("space.Rebin", berrors.DimensionError, "one factor required per axis")
	}
	lefts := make([]int, len(factors))
	rights := make([]int, len(factors))
	newAxes := make([]axis.Axis, len(factors))
	for i, f := range factors {
		left, right, na, err := s.Axes[i].Rebin(f)
		if err != nil {
			return nil, err
		}
		lefts[i], rights[i], newAxes[i] = left, right, na
	}

	shape := s.Shape()
	padShape := make([]int, len(shape))
	for i := range shape {
		padShape[i] = shape[i] + lefts[i] + rights[i] + factors[i]
	}
	padSt := strides(padShape)
	padPhotons := make([]float64, product(padShape))
	padContribs := make([]uint32, product(padShape))

	offsets := make([]int, len(shape))
	for i := range shape {
		offsets[i] = lefts[i] + factors[i]/2
	}
	srcSt := strides(shape)
	odometer(make([]int, len(shape)), shape, func(idx []int) {
		srcFlat := 0
		for i, ix := range idx {
			srcFlat += ix * srcSt[i]
		}
		dstFlat := 0
		for i, ix := range idx {
			dstFlat += (ix + offsets[i]) * padSt[i]
		}
		padPhotons[dstFlat] = s.Photons[srcFlat]
		padContribs[dstFlat] = s.Contributions[srcFlat]
	})

	out, err := New(newAxes)
	if err != nil {
		return nil, err
	}
	outShape := out.Shape()
	outSt := strides(outShape)

	// Each output bin k sums the contiguous factor-wide block of the padded
	// array at [k*factor, (k+1)*factor) along every axis. Every residue
	// offset in [0, factor) contributes exactly one padded element to each
	// output bin, so totals are conserved.
	odometer(make([]int, len(outShape)), outShape, func(k []int) {
		outFlat := 0
		for i, ki := range k {
			outFlat += ki * outSt[i]
		}
		blockStarts := make([]int, len(factors))
		blockStops := make([]int, len(factors))
		for i, ki := range k {
			blockStarts[i] = ki * factors[i]
			blockStops[i] = blockStarts[i] + factors[i]
		}
		odometer(blockStarts, blockStops, func(idx []int) {
			padFlat := 0
			for i, ix := range idx {
				padFlat += ix * padSt[i]
			}
			out.Photons[outFlat] += padPhotons[padFlat]
			out.Contributions[outFlat] += padContribs[padFlat]
		})
	})
	return out, nil
}

func product(shape []int) int {
	n := 1
	for _, v := range shape {
		n *= v
	}
	return n
}
