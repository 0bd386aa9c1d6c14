// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package axis implements the one-dimensional regular grid descriptor that
// Space axes are built from: label, bounds, resolution, and the containment
// and union algebra between two axes. It is the leaf of the core's
// dependency graph; space, aggregate and transform all build on it.
package axis

import (
	"fmt"
	"math"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// snapDigits is the number of decimal digits of (min/res, max/res) that must
// match an integer before the bounds count as already aligned to the
// resolution; anything farther off gets snapped outward.
const snapDigits = 6

// Axis is a one-dimensional regular grid: Min and Max are inclusive
// endpoints spaced Res apart, Label identifies the axis for lookup by name
// (case-insensitively) within a Space.
type Axis struct {
	Label    string
	Min, Max float64
	Res      float64
}

// New canonicalizes (min, max) to multiples of res, snapping outward when
// they deviate from an integer multiple by more than snapDigits decimal
// digits, and returns the resulting Axis. Res must be positive and Label
// non-empty.
func New(label string, min, max, res float64) (Axis, error) {
	if res <= 0 {
		return Axis{}, berrors.E("axis.New", berrors.DimensionError, fmt.Sprintf("resolution must be positive, got %v", res))
	}
	if strings.TrimSpace(label) == "" {
		return Axis{}, berrors.E("axis.New", berrors.DimensionError, "label must be non-empty")
	}
	if !aligned(min, res) || !aligned(max, res) {
		min = math.Floor(min/res) * res
		max = math.Ceil(max/res) * res
	}
	return Axis{Label: label, Min: min, Max: max, Res: res}, nil
}

func aligned(v, res float64) bool {
	ratio := v / res
	return round6(ratio) == round6(math.Round(ratio))
}

func round6(v float64) float64 {
	const scale = 1e6
	return math.Round(v*scale) / scale
}

// Len returns the number of bins, inclusive of both endpoints.
func (a Axis) Len() int {
	return int(math.Round((a.Max-a.Min)/a.Res)) + 1
}

// Coordinate returns the bin-center coordinate of bin i: Min + i*Res.
func (a Axis) Coordinate(i int) float64 {
	return a.Min + float64(i)*a.Res
}

// IndexOf returns the integer bin index nearest to value, failing with
// OutOfRange unless Min <= value <= Max.
//
// Round-half-to-even (banker's rounding) is used deliberately: a coordinate
// exactly on a bin boundary may round either up or down, but the same
// tie-break applies on ingestion and on lookup, so Coordinate(IndexOf(x))
// always returns the nearest bin center consistently.
func (a Axis) IndexOf(value float64) (int, error) {
	if !(value >= a.Min && value <= a.Max) {
		return 0, berrors.E("axis.IndexOf", berrors.OutOfRange,
			fmt.Sprintf("value %v not in [%v, %v] for axis %q", value, a.Min, a.Max, a.Label))
	}
	return int(math.RoundToEven((value - a.Min) / a.Res)), nil
}

// IndexOfMany vectorizes IndexOf over a slice of coordinates. It returns the
// first OutOfRange error encountered, if any; idx[i] is valid only when
// err == nil for the whole call.
func (a Axis) IndexOfMany(values []float64) ([]int, error) {
	idx := make([]int, len(values))
	for i, v := range values {
		ix, err := a.IndexOf(v)
		if err != nil {
			return nil, err
		}
		idx[i] = ix
	}
	return idx, nil
}

// Slice returns the Axis covering integer bin indices [start, stop); strides
// are unsupported by construction (there is no step parameter).
func (a Axis) Slice(start, stop int) (Axis, error) {
	if start < 0 || stop > a.Len() || start >= stop {
		return Axis{}, berrors.E("axis.Slice", berrors.DimensionError,
			fmt.Sprintf("invalid slice [%d:%d) of axis of length %d", start, stop, a.Len()))
	}
	return Axis{
		Label: a.Label,
		Min:   a.Min + float64(start)*a.Res,
		Max:   a.Min + float64(stop-1)*a.Res,
		Res:   a.Res,
	}, nil
}

// Restrict returns the integer bin range [start, stop) whose bin centers all
// fall within [lo, hi): lo is inclusive, hi is exclusive, matching the Space
// indexer's coordinate-slice semantics.
func (a Axis) Restrict(lo, hi float64) (start, stop int, err error) {
	if lo > hi {
		return 0, 0, berrors.E("axis.Restrict", berrors.DimensionError, "lo must be <= hi")
	}
	start = int(math.Ceil((lo - a.Min) / a.Res))
	stop = int(math.Ceil((hi - a.Min) / a.Res))
	if start < 0 {
		start = 0
	}
	if stop > a.Len() {
		stop = a.Len()
	}
	if start >= stop {
		return 0, 0, berrors.E("axis.Restrict", berrors.OutOfRange,
			fmt.Sprintf("range [%v, %v) does not intersect axis %q", lo, hi, a.Label))
	}
	return start, stop, nil
}

// IsCompatible reports whether a and b share the same resolution and label
// (case-insensitively), the precondition for Union, Contains and Space
// addition.
func (a Axis) IsCompatible(b Axis) bool {
	return a.Res == b.Res && strings.EqualFold(a.Label, b.Label)
}

// Equal additionally requires identical bounds.
func (a Axis) Equal(b Axis) bool {
	return a.IsCompatible(b) && a.Min == b.Min && a.Max == b.Max
}

// Contains reports whether a is compatible with and fully encloses b.
func (a Axis) Contains(b Axis) bool {
	return a.IsCompatible(b) && a.Min <= b.Min && a.Max >= b.Max
}

// Union returns the compatible-axis union of a and b: the tightest axis
// whose bounds enclose both, at their shared resolution.
func (a Axis) Union(b Axis) (Axis, error) {
	if !a.IsCompatible(b) {
		return Axis{}, berrors.E("axis.Union", berrors.AxisMismatch,
			fmt.Sprintf("cannot unite axes %q and %q with different resolution/label", a.Label, b.Label))
	}
	return Axis{
		Label: a.Label,
		Min:   math.Min(a.Min, b.Min),
		Max:   math.Max(a.Max, b.Max),
		Res:   a.Res,
	}, nil
}

// Rebin returns the left/right zero-padding (in bins, at the original
// resolution) needed before coarsening by the even positive integer factor,
// and the coarsened axis itself.
func (a Axis) Rebin(factor int) (leftPad, rightPad int, out Axis, err error) {
	if factor <= 0 || factor%2 != 0 {
		return 0, 0, Axis{}, berrors.E("axis.Rebin", berrors.InvalidFactor,
			fmt.Sprintf("rebin factor must be a positive even integer, got %d", factor))
	}
	newRes := a.Res * float64(factor)
	left := int(math.Round(a.Min / a.Res))
	right := int(math.Round(a.Max / a.Res))
	leftPad = ((left % factor) + factor) % factor
	rightPad = ((-right % factor) + factor) % factor
	newMin := newRes * math.Floor(round3(a.Min/newRes))
	newMax := newRes * math.Ceil(round3(a.Max/newRes))
	out = Axis{Label: a.Label, Min: newMin, Max: newMax, Res: newRes}
	return leftPad, rightPad, out, nil
}

func round3(v float64) float64 {
	const scale = 1e3
	return math.Round(v*scale) / scale
}

// SuggestLabel proposes the closest of known to want by Levenshtein edit
// distance, for use in UnknownLabel error messages. ok is false when known
// is empty.
func SuggestLabel(want string, known []string) (suggestion string, ok bool) {
	want = strings.ToLower(want)
	best := -1
	for _, k := range known {
		dist := matchr.Levenshtein(want, strings.ToLower(k))
		if !ok || dist < best {
			best = dist
			suggestion = k
			ok = true
		}
	}
	return suggestion, ok
}

func (a Axis) String() string {
	return fmt.Sprintf("Axis %s (min=%v, max=%v, res=%v, count=%d)", a.Label, a.Min, a.Max, a.Res, a.Len())
}
