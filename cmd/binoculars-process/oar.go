// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/esrf-id03/binoculars/dispatch"
)

// oarScheduler submits and polls batch jobs through the OAR command-line
// tools. submit is the [dispatcher] submit value: the command that re-runs
// this binary on a cluster node (typically the binary's own absolute path,
// possibly behind a site wrapper script).
type oarScheduler struct {
	submit     string
	configPath string
}

// Submit wraps the binoculars sub-command in an oarsub invocation and
// returns the OAR job ID parsed from its output.
func (o *oarScheduler) Submit(ctx context.Context, args []string) (string, error) {
	// The part sub-command needs the configuration on the remote side; merge
	// operates purely on the partial files named in its arguments.
	if len(args) > 0 && args[0] == "part" {
		args = append([]string{args[0], "-config", o.configPath}, args[1:]...)
	}
	command := fmt.Sprintf("%s %s", o.submit, strings.Join(args, " "))
	out, err := exec.CommandContext(ctx, "oarsub", command).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("oarsub: %v: %s", err, out)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "OAR_JOB_ID=") {
			return strings.TrimPrefix(line, "OAR_JOB_ID="), nil
		}
	}
	return "", fmt.Errorf("oarsub output carried no OAR_JOB_ID: %s", out)
}

// Status asks oarstat for one job's state. Any failure to run or parse the
// query maps to StatusUnknown: the scheduler going dark is not the same as
// the job being dead.
func (o *oarScheduler) Status(ctx context.Context, jobID string) dispatch.Status {
	out, err := exec.CommandContext(ctx, "oarstat", "-s", "-j", jobID).Output()
	if err != nil {
		return dispatch.StatusUnknown
	}
	parts := strings.SplitN(string(out), ":", 2)
	if len(parts) != 2 {
		return dispatch.StatusUnknown
	}
	return dispatch.ParseStatus(strings.TrimSpace(parts[1]))
}
