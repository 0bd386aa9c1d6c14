// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package berrors defines the abstract error kinds shared across the
// binoculars core (axis, space, aggregate, transform, spacefile, dispatch),
// following the {Op, Kind, Err} shape of github.com/grailbio/base/errors'
// errors.E, specialized to the closed set of kinds this domain needs instead
// of that package's general-purpose I/O/network kinds.
package berrors

import (
	"fmt"
)

// Kind classifies a Error. The set is closed and mirrors the abstract error
// kinds named in the reduction core's design.
type Kind int

const (
	Other Kind = iota
	AxisMismatch
	DimensionError
	OutOfRange
	UnsupportedStride
	ZeroDimensional
	IncompatibleSubtract
	InvalidFactor
	AmbiguousLabel
	UnknownLabel
	FormatError
	IOError
	UserCancelled
)

func (k Kind) String() string {
	switch k {
	case AxisMismatch:
		return "AxisMismatch"
	case DimensionError:
		return "DimensionError"
	case OutOfRange:
		return "OutOfRange"
	case UnsupportedStride:
		return "UnsupportedStride"
	case ZeroDimensional:
		return "ZeroDimensional"
	case IncompatibleSubtract:
		return "IncompatibleSubtract"
	case InvalidFactor:
		return "InvalidFactor"
	case AmbiguousLabel:
		return "AmbiguousLabel"
	case UnknownLabel:
		return "UnknownLabel"
	case FormatError:
		return "FormatError"
	case IOError:
		return "IOError"
	case UserCancelled:
		return "UserCancelled"
	default:
		return "Other"
	}
}

// Error is the concrete error type produced by E. Op names the operation
// that failed ("axis.IndexOf", "space.Add", ...); Err, when set, is the
// underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
	Msg  string
}

func (e *Error) Error() string {
	s := e.Op
	if e.Kind != Other {
		s += ": " + e.Kind.String()
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error from a free mix of arguments, mirroring the calling
// convention of github.com/grailbio/base/errors' errors.E: callers pass
// whatever context they have in whatever order is convenient.
//
//	berrors.E("axis.IndexOf", OutOfRange, "value 4.2 not in [0, 1]")
//	berrors.E("spacefile.Read", FormatError, err)
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			if e.Op == "" {
				e.Op = v
			} else if e.Msg == "" {
				e.Msg = v
			} else {
				e.Msg += ": " + v
			}
		case Kind:
			e.Kind = v
		case error:
			e.Err = v
		default:
			e.Msg += fmt.Sprintf("%v", v)
		}
	}
	return e
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// any wrapping chain.
func Is(kind Kind, err error) bool {
	for err != nil {
		if be, ok := err.(*Error); ok {
			if be.Kind == kind {
				return true
			}
			err = be.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
