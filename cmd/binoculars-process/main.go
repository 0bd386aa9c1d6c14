// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

/*
binoculars-process reduces detector frames into a reciprocal-space Space.

   binoculars-process process -config config.txt            # local, multi-worker
   binoculars-process cluster -config config.txt            # one batch job per scan
   binoculars-process part -config config.txt -o part.hdf5 scan17
   binoculars-process merge -o total.hdf5 part1.hdf5 part2.hdf5
   binoculars-process info space.hdf5

A run that reduces some but not all scans still exits 0; the skipped scans
are reported on stdout. A non-zero exit means nothing was produced.
*/

import (
	"fmt"
	"log"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"

	"github.com/esrf-id03/binoculars/config"
	"github.com/esrf-id03/binoculars/dispatch"
	"github.com/esrf-id03/binoculars/spacefile"
)

// newRegistry is where input backends and projections are linked into the
// binary. Beamline packages provide a BackendMaker/ProjectionMaker pair;
// add them here.
func newRegistry() *dispatch.Registry {
	return dispatch.NewRegistry()
}

func loadPipeline(env *cmdline.Env, configPath string) (dispatch.Config, dispatch.Backend, dispatch.Projection, error) {
	ctx := vcontext.Background()
	c, err := config.Load(ctx, configPath)
	if err != nil {
		return dispatch.Config{}, nil, nil, err
	}
	return dispatch.FromConfig(ctx, newRegistry(), c)
}

func reportFailed(result *dispatch.Result) {
	for _, f := range result.Failed {
		fmt.Printf("scan %s skipped: %v\n", f.Scan, f.Err)
	}
	if result.Produced() {
		fmt.Printf("wrote %s (%d scans merged, %d skipped)\n", result.Output, result.Merged, len(result.Failed))
	}
}

func newCmdProcess() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "process",
		Short: "Reduce every scan on this host and write the summed Space",
	}
	configFlag := cmd.Flags.String("config", "", "Configuration file path")
	outFlag := cmd.Flags.String("o", "", "Override the [dispatcher] destination")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *configFlag == "" {
			return fmt.Errorf("-config is required")
		}
		ctx := vcontext.Background()
		cfg, backend, proj, err := loadPipeline(env, *configFlag)
		if err != nil {
			return err
		}
		if *outFlag != "" {
			cfg.Output = *outFlag
		}
		if cfg.Axes == nil {
			c, err := config.Load(ctx, *configFlag)
			if err != nil {
				return err
			}
			labels, resolutions, err := dispatch.AxisSpecFromConfig(c)
			if err != nil {
				return err
			}
			if cfg.Axes, err = dispatch.DiscoverAxes(ctx, backend, proj, labels, resolutions); err != nil {
				return err
			}
		}
		result, err := dispatch.Local(ctx, cfg, backend, proj)
		if err != nil {
			return err
		}
		reportFailed(result)
		return nil
	})
	return cmd
}

func newCmdCluster() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "cluster",
		Short: "Submit one batch job per scan and tree-merge the partials",
	}
	configFlag := cmd.Flags.String("config", "", "Configuration file path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *configFlag == "" {
			return fmt.Errorf("-config is required")
		}
		ctx := vcontext.Background()
		cfg, backend, _, err := loadPipeline(env, *configFlag)
		if err != nil {
			return err
		}
		if cfg.Axes == nil {
			return fmt.Errorf("cluster mode requires explicit [projection] limits")
		}
		c, err := config.Load(ctx, *configFlag)
		if err != nil {
			return err
		}
		submit := c.Section(config.SectionDispatcher).GetString("submit", "")
		if submit == "" {
			return fmt.Errorf("cluster mode requires the [dispatcher] submit key")
		}
		oar := &oarScheduler{submit: submit, configPath: *configFlag}
		result, err := dispatch.Cluster(ctx, cfg, backend, oar, oar)
		if err != nil {
			return err
		}
		reportFailed(result)
		return nil
	})
	return cmd
}

func newCmdPart() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "part",
		Short:    "Reduce a single scan and write its partial Space (cluster job entry point)",
		ArgsName: "scan",
	}
	configFlag := cmd.Flags.String("config", "", "Configuration file path")
	outFlag := cmd.Flags.String("o", "", "Partial output path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("part takes one scan argument, but got %v", argv)
		}
		if *configFlag == "" || *outFlag == "" {
			return fmt.Errorf("-config and -o are required")
		}
		ctx := vcontext.Background()
		cfg, backend, proj, err := loadPipeline(env, *configFlag)
		if err != nil {
			return err
		}
		if cfg.Axes == nil {
			return fmt.Errorf("part requires explicit [projection] limits")
		}
		return dispatch.Part(ctx, cfg, backend, proj, argv[0], *outFlag)
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Sum partial Spaces into one output (cluster job entry point)",
		ArgsName: "partial...",
	}
	outFlag := cmd.Flags.String("o", "", "Output path")
	deleteFlag := cmd.Flags.Bool("delete", false, "Remove inputs after a successful write")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return fmt.Errorf("merge takes at least one partial path")
		}
		if *outFlag == "" {
			return fmt.Errorf("-o is required")
		}
		ctx := vcontext.Background()
		merged, err := dispatch.Merge(ctx, argv, *outFlag, *deleteFlag)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d partials merged)\n", *outFlag, merged)
		return nil
	})
	return cmd
}

func newCmdInfo() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "info",
		Short:    "Print the axes of a stored Space without loading its arrays",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("info takes one pathname argument, but got %v", argv)
		}
		axes, err := spacefile.ReadAxesOnly(vcontext.Background(), argv[0])
		if err != nil {
			return err
		}
		for _, a := range axes {
			fmt.Println(a.String())
		}
		return nil
	})
	return cmd
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "binoculars-process",
			Short:    "Reduce synchrotron detector frames into reciprocal-space histograms",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdProcess(),
				newCmdCluster(),
				newCmdPart(),
				newCmdMerge(),
				newCmdInfo(),
			},
		})
}
