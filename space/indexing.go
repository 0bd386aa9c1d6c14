// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package space

import (
	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// keyKind tags which variant of Key is populated.
type keyKind int

const (
	keyAll keyKind = iota
	keyNumber
	keyRange
)

// Key is one element of a tuple index into a Space: either the full axis
// (":"), a single coordinate value (collapses that axis), or a coordinate
// range [lo, hi) (a contiguous sub-range). A strided range can be expressed
// but never resolved; indexing rejects it with UnsupportedStride.
type Key struct {
	kind   keyKind
	value  float64
	lo, hi float64
	step   float64
}

// All selects every bin along an axis, unchanged.
func All() Key { return Key{kind: keyAll} }

// At collapses an axis at the bin nearest to value.
func At(value float64) Key { return Key{kind: keyNumber, value: value} }

// Between selects the contiguous coordinate range [lo, hi), inclusive lower
// and exclusive upper, matching Axis.Restrict.
func Between(lo, hi float64) Key { return Key{kind: keyRange, lo: lo, hi: hi} }

// BetweenStep is Between with an explicit step. Only contiguous ranges can
// be resolved, so any step other than zero fails at indexing time.
func BetweenStep(lo, hi, step float64) Key {
	return Key{kind: keyRange, lo: lo, hi: hi, step: step}
}

// odometer calls fn once for every multi-index in the box described by
// starts (inclusive) and stops (exclusive), in C order (last axis varies
// fastest).
func odometer(starts, stops []int, fn func(idx []int)) {
	n := len(starts)
	if n == 0 {
		return
	}
	idx := append([]int(nil), starts...)
	for {
		fn(idx)
		i := n - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < stops[i] {
				break
			}
			idx[i] = starts[i]
			i--
		}
		if i < 0 {
			return
		}
	}
}

// At indexes s with one Key per axis. A Key built with the At() constructor
// that collapses every axis is rejected with ZeroDimensional, since a
// zero-dimensional Space cannot be represented; use Bin directly for a true
// scalar lookup.
func (s *Space) At(keys ...Key) (*Space, error) {
	return s.indexTuple(keys)
}

func (s *Space) indexTuple(keys []Key) (*Space, error) {
	if len(keys) != len(s.Axes) {
		return nil, berrors.E("space.At", berrors.DimensionError, "number of keys must match number of axes")
	}
	shape := s.Shape()
	st := strides(shape)

	starts := make([]int, len(keys))
	stops := make([]int, len(keys))
	collapse := make([]bool, len(keys))

	for i, k := range keys {
		a := s.Axes[i]
		switch k.kind {
		case keyAll:
			starts[i], stops[i] = 0, a.Len()
		case keyNumber:
			idx, err := a.IndexOf(k.value)
			if err != nil {
				return nil, err
			}
			starts[i], stops[i] = idx, idx+1
			collapse[i] = true
		case keyRange:
			if k.step != 0 {
				return nil, berrors.E("space.At", berrors.UnsupportedStride, "strided slices are not supported")
			}
			start, stop, err := a.Restrict(k.lo, k.hi)
			if err != nil {
				return nil, err
			}
			starts[i], stops[i] = start, stop
		default:
			return nil, berrors.E("space.At", berrors.DimensionError, "unrecognized key")
		}
	}

	var newAxes []axis.Axis
	for i, a := range s.Axes {
		if collapse[i] {
			continue
		}
		na, err := a.Slice(starts[i], stops[i])
		if err != nil {
			return nil, err
		}
		newAxes = append(newAxes, na)
	}
	if len(newAxes) == 0 {
		return nil, berrors.E("space.At", berrors.ZeroDimensional, "indexing would collapse every axis")
	}

	out, err := New(newAxes)
	if err != nil {
		return nil, err
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
	return out, nil
}

// Slice is equivalent to indexing with All() on every axis except sel, which
// is indexed with key.
func (s *Space) Slice(sel Selector, key Key) (*Space, error) {
	axIdx, err := s.ResolveAxis(sel)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, len(s.Axes))
	for i := range keys {
		keys[i] = All()
	}
	keys[axIdx] = key
	return s.indexTuple(keys)
}

// Project sums Photons and Contributions along sel, dropping that axis.
func (s *Space) Project(sel Selector) (*Space, error) {
	axIdx, err := s.ResolveAxis(sel)
	if err != nil {
		return nil, err
	}
	shape := s.Shape()
	st := strides(shape)

	var newAxes []axis.Axis
	for i, a := range s.Axes {
		if i != axIdx {
			newAxes = append(newAxes, a)
		}
	}
	out, err := New(newAxes)
	if err != nil {
		return nil, err
	}
	outShape := out.Shape()
	outSt := strides(outShape)

	odometer(make([]int, len(shape)), shape, func(idx []int) {
		flat := 0
		for i, ix := range idx {
			flat += ix * st[i]
		}
		outFlat := 0
		oi := 0
		for i, ix := range idx {
			if i == axIdx {
				continue
			}
			outFlat += ix * outSt[oi]
			oi++
		}
		out.Photons[outFlat] += s.Photons[flat]
		out.Contributions[outFlat] += s.Contributions[flat]
	})
	return out, nil
}
