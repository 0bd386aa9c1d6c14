// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"v.io/x/lib/vlog"

	"github.com/esrf-id03/binoculars/axis"
	"github.com/esrf-id03/binoculars/config"
)

// dispatcherKeys are the [dispatcher] section keys the core itself consumes.
var dispatcherKeys = []string{
	"workers", "chunksize", "destination", "tmpdir", "delete", "trim",
	"skipoutofrange", "pollinterval", "maxunknown", "submit",
}

// projectionKeys are the [projection] section keys the core consumes; the
// selected projection plugin may add its own on top.
var projectionKeys = []string{"labels", "resolutions", "limits"}

type corePlugin struct {
	name string
	keys []string
}

func (p corePlugin) Name() string         { return p.name }
func (p corePlugin) ConfigKeys() []string { return p.keys }

// FromConfig instantiates the pipeline from a parsed configuration: the
// input backend and projection selected by each section's "type" key, and
// the dispatcher Config assembled from [dispatcher] and [projection].
//
// When the [projection] section carries no "limits" key, the returned
// Config.Axes is nil and the caller is expected to run DiscoverAxes first.
func FromConfig(ctx context.Context, reg *Registry, c config.Config) (Config, Backend, Projection, error) {
	var cfg Config

	inSec := c.Section(config.SectionInput)
	backendType, ok := inSec.Get(config.TypeKey)
	if !ok {
		return cfg, nil, nil, errors.New("config: [input] section has no type key")
	}
	bm, err := reg.Backend(backendType)
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := inSec.Validate(bm); err != nil {
		return cfg, nil, nil, err
	}
	backend, err := bm.New(inSec)
	if err != nil {
		return cfg, nil, nil, err
	}

	projSec := c.Section(config.SectionProjection)
	projType, ok := projSec.Get(config.TypeKey)
	if !ok {
		return cfg, nil, nil, errors.New("config: [projection] section has no type key")
	}
	pm, err := reg.Projection(projType)
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := projSec.Validate(corePlugin{
		name: pm.Name(),
		keys: append(append([]string(nil), projectionKeys...), pm.ConfigKeys()...),
	}); err != nil {
		return cfg, nil, nil, err
	}
	proj, err := pm.New(projSec)
	if err != nil {
		return cfg, nil, nil, err
	}

	labels, resolutions, err := axisSpec(projSec)
	if err != nil {
		return cfg, nil, nil, err
	}
	if limits, ok := projSec.Get("limits"); ok {
		cfg.Axes, err = explicitAxes(labels, resolutions, limits)
		if err != nil {
			return cfg, nil, nil, err
		}
	}

	dispSec := c.Section(config.SectionDispatcher)
	if err := dispSec.Validate(corePlugin{name: "dispatcher", keys: dispatcherKeys}); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.Workers, err = dispSec.GetInt("workers", 1); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.ChunkSize, err = dispSec.GetInt("chunksize", defaultChunkSize); err != nil {
		return cfg, nil, nil, err
	}
	cfg.Output = dispSec.GetString("destination", "")
	if cfg.Output == "" {
		return cfg, nil, nil, errors.New("config: [dispatcher] destination is required")
	}
	cfg.TempDir = dispSec.GetString("tmpdir", "")
	if cfg.DeletePartials, err = dispSec.GetBool("delete", false); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.Trim, err = dispSec.GetBool("trim", false); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.SkipOutOfRange, err = dispSec.GetBool("skipoutofrange", false); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.PollInterval, err = duration(dispSec, "pollinterval", defaultPollInterval); err != nil {
		return cfg, nil, nil, err
	}
	if cfg.MaxUnknownDuration, err = duration(dispSec, "maxunknown", 0); err != nil {
		return cfg, nil, nil, err
	}
	return cfg, backend, proj, nil
}

func duration(sec config.Section, key string, def time.Duration) (time.Duration, error) {
	v, ok := sec.Get(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "config key %q", key)
	}
	return d, nil
}

// axisSpec reads the target-axis labels and resolutions from the
// [projection] section. Both are comma-separated lists of equal length.
func axisSpec(sec config.Section) (labels []string, resolutions []float64, err error) {
	rawLabels, ok := sec.Get("labels")
	if !ok {
		return nil, nil, errors.New("config: [projection] labels is required")
	}
	rawRes, ok := sec.Get("resolutions")
	if !ok {
		return nil, nil, errors.New("config: [projection] resolutions is required")
	}
	for _, l := range strings.Split(rawLabels, ",") {
		labels = append(labels, strings.TrimSpace(l))
	}
	for _, r := range strings.Split(rawRes, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil {
			return nil, nil, errors.Wrap(err, "config: [projection] resolutions")
		}
		resolutions = append(resolutions, f)
	}
	if len(labels) != len(resolutions) {
		return nil, nil, errors.Errorf("config: %d labels but %d resolutions", len(labels), len(resolutions))
	}
	return labels, resolutions, nil
}

// explicitAxes builds the target axes from a "limits" value of the form
// "min:max,min:max,...", one pair per axis.
func explicitAxes(labels []string, resolutions []float64, limits string) ([]axis.Axis, error) {
	pairs := strings.Split(limits, ",")
	if len(pairs) != len(labels) {
		return nil, errors.Errorf("config: %d labels but %d limit pairs", len(labels), len(pairs))
	}
	axes := make([]axis.Axis, len(labels))
	for i, p := range pairs {
		bounds := strings.Split(strings.TrimSpace(p), ":")
		if len(bounds) != 2 {
			return nil, errors.Errorf("config: malformed limit %q, want min:max", p)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(bounds[0]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "config: limit %q", p)
		}
		hi, err := strconv.ParseFloat(strings.TrimSpace(bounds[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "config: limit %q", p)
		}
		a, err := axis.New(labels[i], lo, hi, resolutions[i])
		if err != nil {
			return nil, err
		}
		axes[i] = a
	}
	return axes, nil
}

// DiscoverAxes runs a first pass over every scan's frames, projecting each
// and tracking the per-axis coordinate extrema of pixels with finite
// intensity, then builds target axes at the given resolutions. It is the
// automatic alternative to an explicit "limits" key.
func DiscoverAxes(ctx context.Context, backend Backend, proj Projection, labels []string, resolutions []float64) ([]axis.Axis, error) {
	if len(labels) != len(resolutions) {
		return nil, errors.Errorf("%d labels but %d resolutions", len(labels), len(resolutions))
	}
	lo := make([]float64, len(labels))
	hi := make([]float64, len(labels))
	for i := range lo {
		lo[i] = math.Inf(1)
		hi[i] = math.Inf(-1)
	}
	scans, err := backend.Scans(ctx)
	if err != nil {
		return nil, err
	}
	for _, scan := range scans {
		sc, err := backend.Frames(ctx, scan)
		if err != nil {
			vlog.Errorf("discover: scan %s unreadable, skipping: %v", scan, err)
			continue
		}
		for sc.Scan() {
			coords, intensity, err := proj.Project(sc.Frame())
			if err != nil {
				return nil, err
			}
			if len(coords) != len(labels) {
				return nil, errors.Errorf("projection produced %d coordinate arrays, want %d", len(coords), len(labels))
			}
			for p, v := range intensity {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				for j := range coords {
					c := coords[j][p]
					if c < lo[j] {
						lo[j] = c
					}
					if c > hi[j] {
						hi[j] = c
					}
				}
			}
		}
		if err := sc.Err(); err != nil {
			vlog.Errorf("discover: scan %s failed mid-read, skipping rest: %v", scan, err)
		}
	}
	axes := make([]axis.Axis, len(labels))
	for i := range labels {
		if math.IsInf(lo[i], 1) {
			return nil, errors.Errorf("no finite coordinates found for axis %q", labels[i])
		}
		a, err := axis.New(labels[i], lo[i], hi[i], resolutions[i])
		if err != nil {
			return nil, err
		}
		axes[i] = a
	}
	return axes, nil
}

// AxisSpecFromConfig exposes the [projection] labels/resolutions pair for
// callers that need to run DiscoverAxes themselves.
func AxisSpecFromConfig(c config.Config) (labels []string, resolutions []float64, err error) {
	return axisSpec(c.Section(config.SectionProjection))
}
