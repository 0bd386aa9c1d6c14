// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"

	"github.com/grailbio/base/traverse"
	"v.io/x/lib/vlog"

	"github.com/esrf-id03/binoculars/aggregate"
	"github.com/esrf-id03/binoculars/internal/berrors"
	"github.com/esrf-id03/binoculars/space"
	"github.com/esrf-id03/binoculars/spacefile"
)

// Local runs the whole pipeline on this host: one worker per scan up to
// cfg.Workers, each building a partial Space over cfg.Axes, folded into a
// single accumulator as workers finish (first finished, first merged) and
// written atomically to cfg.Output.
//
// A scan that fails during ingestion contributes nothing and is reported in
// Result.Failed; the pipeline continues. Local returns an error only for
// unrecoverable conditions: no scans at all, every scan failed, cancellation,
// or a failed final write.
func Local(ctx context.Context, cfg Config, backend Backend, proj Projection) (*Result, error) {
	scans, err := backend.Scans(ctx)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, berrors.E("dispatch.Local", "input backend yielded no scans")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(scans) {
		workers = len(scans)
	}
	vlog.Infof("local: %d scans, %d workers, output %s", len(scans), workers, cfg.Output)

	type partial struct {
		scan string
		s    *space.Space
		err  error
	}
	ch := make(chan partial)
	go func() {
		// Workers are strided over the scan list; each owns its Space
		// exclusively until it is handed to the merge loop below.
		_ = traverse.Each(workers, func(w int) error {
			for i := w; i < len(scans); i += workers {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s, perr := ProcessScan(ctx, cfg, backend, proj, scans[i])
				select {
				case ch <- partial{scan: scans[i], s: s, err: perr}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
		close(ch)
	}()

	acc, err := emptyAccumulator(cfg)
	if err != nil {
		return nil, err
	}
	result := &Result{Output: cfg.Output}
	for p := range ch {
		if p.err != nil {
			vlog.Errorf("local: scan %s failed, skipping: %v", p.scan, p.err)
			result.Failed = append(result.Failed, FailedScan{Scan: p.scan, Err: p.err})
			continue
		}
		if err := acc.AddInPlace(p.s); err != nil {
			return nil, err
		}
		result.Merged++
		vlog.Infof("local: merged scan %s (%d/%d)", p.scan, result.Merged+len(result.Failed), len(scans))
	}
	if ctx.Err() != nil {
		return nil, berrors.E("dispatch.Local", berrors.UserCancelled, ctx.Err())
	}
	if result.Merged == 0 {
		return result, berrors.E("dispatch.Local", "all scans failed")
	}
	if cfg.Trim {
		if err := acc.Trim(); err != nil {
			return nil, err
		}
	}
	if err := spacefile.WriteAtomic(ctx, cfg.Output, acc); err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessScan builds one scan's Space over cfg.Axes: every frame is run
// through the projection and accumulated by the aggregation kernel. A frame
// whose coordinates fall outside the target axes is logged and skipped;
// any other error aborts the scan.
func ProcessScan(ctx context.Context, cfg Config, backend Backend, proj Projection, scan string) (*space.Space, error) {
	s, err := space.New(cfg.Axes)
	if err != nil {
		return nil, err
	}
	sc, err := backend.Frames(ctx, scan)
	if err != nil {
		return nil, err
	}
	opts := aggregate.Options{SkipOutOfRange: cfg.SkipOutOfRange}
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil, berrors.E("dispatch.ProcessScan", berrors.UserCancelled, ctx.Err())
		}
		frame := sc.Frame()
		coords, intensity, err := proj.Project(frame)
		if err != nil {
			return nil, err
		}
		if _, err := aggregate.Image(s, coords, intensity, opts); err != nil {
			if berrors.Is(berrors.OutOfRange, err) {
				vlog.Errorf("scan %s frame %d outside target axes, skipped: %v", scan, frame.Index, err)
				continue
			}
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Part is the cluster-job entry point for a single scan: build its Space and
// write it to output. It is what a submitted "part" job ends up calling.
func Part(ctx context.Context, cfg Config, backend Backend, proj Projection, scan, output string) error {
	s, err := ProcessScan(ctx, cfg, backend, proj, scan)
	if err != nil {
		return err
	}
	return spacefile.WriteAtomic(ctx, output, s)
}
