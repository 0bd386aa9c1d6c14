// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dispatch fans image-jobs out to workers, each producing a partial
// Space for one scan, and merges the partials by associative addition into a
// single output file. Two modes are provided: Local runs the scans on this
// host with a bounded worker pool; Cluster submits one batch job per scan to
// an external scheduler and reduces the partials in a tree of merge jobs.
package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/minio/highwayhash"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/space"
)

// Frame carries one detector image's per-pixel geometry, produced by an
// input backend. The concrete column set is backend-specific; the matching
// Projection knows which columns to read.
type Frame struct {
	Scan    string
	Index   int
	Columns map[string][]float64
}

// FrameScanner iterates the frames of one scan in acquisition order.
//
//	for sc.Scan() {
//		frame := sc.Frame()
//		...
//	}
//	err := sc.Err()
type FrameScanner interface {
	Scan() bool
	Frame() *Frame
	Err() error
}

// Backend is the input side of the pipeline: it enumerates scans and yields
// each scan's frames. Implementations live outside the core (they read
// beamline-specific instrument files); the core only consumes this interface.
type Backend interface {
	Name() string
	ConfigKeys() []string
	Scans(ctx context.Context) ([]string, error)
	Frames(ctx context.Context, scan string) (FrameScanner, error)
}

// Projection maps one frame's pixel geometry to per-pixel coordinate arrays
// (one per target axis, in axis order) plus the intensity array, all of equal
// length. It must be pure: same frame in, same coordinates out.
type Projection interface {
	Name() string
	ConfigKeys() []string
	Project(f *Frame) (coords [][]float64, intensity []float64, err error)
}

// Config carries everything the dispatcher needs from the configuration
// loader; it is passed by value to the per-scan worker function, so workers
// hold no process-wide state.
type Config struct {
	// Axes is the target axis set every partial Space is built over. It must
	// enclose every coordinate the projection produces unless SkipOutOfRange
	// is set.
	Axes []axis.Axis

	// Workers bounds local-mode parallelism. 1 processes the scans one at a
	// time on a single worker goroutine.
	Workers int

	// Output is the final Space path. Partials and chunks are placed in
	// TempDir (default: Output's directory).
	Output  string
	TempDir string

	// Trim shrinks the final Space to its non-empty bounding box before the
	// final write.
	Trim bool

	// SkipOutOfRange drops individual out-of-range pixels instead of failing
	// the frame.
	SkipOutOfRange bool

	// ChunkSize is the cluster-mode tree-reduction fan-in: at most this many
	// partials are summed per merge job.
	ChunkSize int

	// DeletePartials makes merge jobs remove their inputs after a successful
	// write. A failed merge always retains its inputs so a re-run can resume.
	DeletePartials bool

	// PollInterval is the cluster-mode scheduler polling period.
	PollInterval time.Duration

	// MaxUnknownDuration bounds how long a job may report Unknown status
	// before it is treated as failed. Zero means wait indefinitely, which
	// matches the historical behavior of tolerating transient scheduler
	// opacity.
	MaxUnknownDuration time.Duration
}

const (
	defaultChunkSize    = 20
	defaultPollInterval = 5 * time.Second
)

// Result reports what a pipeline run produced. Failed lists scans that
// raised during ingestion and therefore contributed nothing; a run with some
// failed scans is still a success as long as at least one scan landed.
type Result struct {
	Output string
	Merged int
	Failed []FailedScan
}

// FailedScan pairs a scan identifier with the error that sank it.
type FailedScan struct {
	Scan string
	Err  error
}

// Produced reports whether the run wrote any data at all.
func (r *Result) Produced() bool { return r.Merged > 0 }

// hashKey is the fixed highwayhash key; the digest only needs to be stable
// across runs, not secret.
var hashKey [32]byte

// runPrefix derives a stable per-run file prefix from the target axes and
// the scan list, so a re-run over the same range recognizes (and may reuse)
// its own prior partials, while any change to axes or scans yields a
// disjoint namespace.
func runPrefix(axes []axis.Axis, scans []string) string {
	var buf []byte
	for _, a := range axes {
		buf = append(buf, a.Label...)
		buf = appendFloat(buf, a.Min)
		buf = appendFloat(buf, a.Max)
		buf = appendFloat(buf, a.Res)
	}
	for _, s := range scans {
		buf = append(buf, s...)
		buf = append(buf, 0)
	}
	return fmt.Sprintf("binoculars-%016x", farm.Fingerprint64(buf))
}

// partialPath names the partial Space for one scan. The name embeds a digest
// of the job parameters (axes plus scan), so an on-disk partial from a
// previous run is reused only when it was produced by an identical job.
func partialPath(cfg Config, prefix, scan string) string {
	var buf []byte
	for _, a := range cfg.Axes {
		buf = append(buf, a.Label...)
		buf = appendFloat(buf, a.Min)
		buf = appendFloat(buf, a.Max)
		buf = appendFloat(buf, a.Res)
	}
	buf = append(buf, scan...)
	digest := highwayhash.Sum64(buf, hashKey[:])
	return filepath.Join(tempDir(cfg), fmt.Sprintf("%s-part-%s-%016x.hdf5", prefix, scan, digest))
}

func chunkPath(cfg Config, prefix string, i int) string {
	return filepath.Join(tempDir(cfg), fmt.Sprintf("%s-chunk-%d.hdf5", prefix, i+1))
}

func tempDir(cfg Config) string {
	if cfg.TempDir != "" {
		return cfg.TempDir
	}
	return filepath.Dir(cfg.Output)
}

func appendFloat(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

// emptyAccumulator allocates the full-range accumulator Space once; all
// partials fit inside it by construction, so folding never re-allocates and
// peak memory stays at one full-range Space.
func emptyAccumulator(cfg Config) (*space.Space, error) {
	return space.New(cfg.Axes)
}
