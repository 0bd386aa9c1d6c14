// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package space

import (
	"fmt"
	"strings"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/internal/berrors"
)

// selectorKind tags which variant of Selector is populated.
type selectorKind int

const (
	selByIndex selectorKind = iota
	selByLabel
	selByAxis
)

// Selector is a tagged union over the three ways an axis can be identified:
// by position, by name, or by an Axis value itself. All lookups funnel
// through one resolver, ResolveAxis.
type Selector struct {
	kind  selectorKind
	index int
	label string
	axis  axis.Axis
}

// ByIndex selects an axis by its position in Space.Axes.
func ByIndex(i int) Selector { return Selector{kind: selByIndex, index: i} }

// ByLabel selects an axis by its (case-insensitive) label.
func ByLabel(label string) Selector { return Selector{kind: selByLabel, label: label} }

// ByAxis selects the axis equal to a.
func ByAxis(a axis.Axis) Selector { return Selector{kind: selByAxis, axis: a} }

// ResolveAxis resolves sel against s.Axes, returning its integer position.
func (s *Space) ResolveAxis(sel Selector) (int, error) {
	switch sel.kind {
	case selByIndex:
		if sel.index < 0 || sel.index >= len(s.Axes) {
			return 0, berrors.E("space.ResolveAxis", berrors.DimensionError, fmt.Sprintf("axis index %d out of range", sel.index))
		}
		return sel.index, nil
	case selByLabel:
		return s.axisIndexByLabel(sel.label)
	case selByAxis:
		for i, a := range s.Axes {
			if a.Equal(sel.axis) {
				return i, nil
			}
		}
		return 0, berrors.E("space.ResolveAxis", berrors.UnknownLabel, fmt.Sprintf("no axis equal to %v", sel.axis))
	default:
		return 0, berrors.E("space.ResolveAxis", berrors.DimensionError, "unrecognized selector")
	}
}

func (s *Space) axisIndexByLabel(label string) (int, error) {
	want := strings.ToLower(label)
	match := -1
	for i, a := range s.Axes {
		if strings.ToLower(a.Label) == want {
			if match != -1 {
				return 0, berrors.E("space.ResolveAxis", berrors.AmbiguousLabel, fmt.Sprintf("ambiguous axis label %q", label))
			}
			match = i
		}
	}
	if match == -1 {
		known := make([]string, len(s.Axes))
		for i, a := range s.Axes {
			known[i] = a.Label
		}
		msg := fmt.Sprintf("no axis labeled %q", label)
		if suggestion, ok := axis.SuggestLabel(label, known); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return 0, berrors.E("space.ResolveAxis", berrors.UnknownLabel, msg)
	}
	return match, nil
}
