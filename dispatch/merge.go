// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"

	"github.com/grailbio/base/file"
	"v.io/x/lib/vlog"

	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
	"github.com/esrf-id03/binoculars/spacefile"
)

// Merge sums the Spaces stored at inputs into a single Space written
// atomically to output, and is the entry point of cluster "merge" jobs.
//
// An input that cannot be opened is skipped with a log line: a failed scan
// never produced its partial, and its absence must not sink the whole
// branch. A partial that opens but fails to decode is a hard error. Inputs
// are removed only after the output write succeeded and only when
// deleteInputs is set, so a failed merge always leaves its inputs behind
// for a re-run.
func Merge(ctx context.Context, inputs []string, output string, deleteInputs bool) (merged int, err error) {
	acc := space.Empty()
	for _, in := range inputs {
		s, err := spacefile.ReadSpace(ctx, in)
		if err != nil {
			if berrors.Is(berrors.IOError, err) {
				vlog.Errorf("merge: %s unreadable, skipping: %v", in, err)
				continue
			}
			return 0, err
		}
		if acc == nil {
			acc = s
		} else if err := acc.AddInPlace(s); err != nil {
			return 0, err
		}
		merged++
	}
	if merged == 0 {
		return 0, berrors.E("dispatch.Merge", "no readable inputs")
	}
	if err := spacefile.WriteAtomic(ctx, output, acc); err != nil {
		return 0, err
	}
	if deleteInputs {
		for _, in := range inputs {
			if err := file.Remove(ctx, in); err != nil {
				vlog.Errorf("merge: could not remove %s: %v", in, err)
			}
		}
	}
	return merged, nil
}
