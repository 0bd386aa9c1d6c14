// Copyright 2026 The binoculars Authors.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"math"
	"time"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/file"
	"v.io/x/lib/vlog"

	"github.com/esrf-id03/binoculars/internal/berrors"
)

// Status is a batch scheduler's view of one submitted job, folded to the
// six states the driver distinguishes.
type Status int

const (
	// StatusUnknown covers scheduler opacity: a poll that failed or returned
	// something unparseable. It is deliberately not a failure; schedulers go
	// dark transiently.
	StatusUnknown Status = iota
	StatusWaiting
	StatusRunning
	StatusFinishing
	StatusTerminated
	// StatusOther is any state string the driver does not recognize; like
	// Finishing and Terminated it means "stop waiting on this job".
	StatusOther
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "Waiting"
	case StatusRunning:
		return "Running"
	case StatusFinishing:
		return "Finishing"
	case StatusTerminated:
		return "Terminated"
	case StatusOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// ParseStatus folds a scheduler's status string into a Status.
func ParseStatus(s string) Status {
	switch s {
	case "Waiting":
		return StatusWaiting
	case "Running":
		return StatusRunning
	case "Finishing":
		return StatusFinishing
	case "Terminated":
		return StatusTerminated
	case "Unknown", "":
		return StatusUnknown
	default:
		return StatusOther
	}
}

// stillPending reports whether the driver should keep waiting on a job in
// this state: Running, Waiting and Unknown all mean "not done yet";
// everything else means the job has left the scheduler.
func (s Status) stillPending() bool {
	return s == StatusRunning || s == StatusWaiting || s == StatusUnknown
}

// Submitter hands one job to the batch scheduler. args is the binoculars
// sub-command the remote job must run ("part"/"merge" plus its operands);
// the implementation wraps it in whatever submission string the scheduler
// wants (supplied by configuration) and returns the scheduler's job ID.
type Submitter interface {
	Submit(ctx context.Context, args []string) (jobID string, err error)
}

// Poller queries the scheduler for one job's status. Implementations map
// query failures to StatusUnknown rather than returning an error; the
// driver's wait loop owns the decision of how long Unknown may persist.
type Poller interface {
	Status(ctx context.Context, jobID string) Status
}

// jobID orders cluster job IDs inside the wait loop's llrb tree, giving the
// poll loop a stable iteration order across rounds.
type jobID string

func (j jobID) Compare(c llrb.Comparable) int {
	o := c.(jobID)
	switch {
	case j < o:
		return -1
	case j > o:
		return 1
	}
	return 0
}

// waitJobs polls every job until it leaves the scheduler. Jobs reporting
// Unknown longer than maxUnknown (when maxUnknown > 0) are given up on and
// returned in failed; with maxUnknown == 0 an Unknown job is waited on
// forever.
func waitJobs(ctx context.Context, poll Poller, jobs []string, interval, maxUnknown time.Duration) (failed []string, err error) {
	pending := &llrb.Tree{}
	for _, j := range jobs {
		pending.Insert(jobID(j))
	}
	firstUnknown := make(map[string]time.Time)
	total := pending.Len()
	for pending.Len() > 0 {
		var round []string
		pending.Do(func(c llrb.Comparable) (done bool) {
			round = append(round, string(c.(jobID)))
			return false
		})
		for _, id := range round {
			status := poll.Status(ctx, id)
			if !status.stillPending() {
				pending.Delete(jobID(id))
				delete(firstUnknown, id)
				vlog.Infof("cluster: job %s %v, %d of %d to go", id, status, pending.Len(), total)
				continue
			}
			if status != StatusUnknown {
				delete(firstUnknown, id)
				continue
			}
			if maxUnknown <= 0 {
				continue
			}
			since, ok := firstUnknown[id]
			if !ok {
				firstUnknown[id] = time.Now()
				continue
			}
			if time.Since(since) > maxUnknown {
				pending.Delete(jobID(id))
				delete(firstUnknown, id)
				failed = append(failed, id)
				vlog.Errorf("cluster: job %s unknown for over %v, giving up on it", id, maxUnknown)
			}
		}
		if pending.Len() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return failed, berrors.E("dispatch.waitJobs", berrors.UserCancelled, ctx.Err())
		case <-time.After(interval):
		}
	}
	return failed, nil
}

// Cluster drives the batch-scheduler pipeline: one "part" job per scan, a
// wait, then a tree of "merge" jobs bounded by cfg.ChunkSize, then the final
// merge into cfg.Output. Partials already on disk from a previous identical
// run (recognized by their parameter digest in the file name) are reused
// without resubmission. The driver never kills remote jobs; on cancellation
// it simply stops waiting.
func Cluster(ctx context.Context, cfg Config, backend Backend, sub Submitter, poll Poller) (*Result, error) {
	scans, err := backend.Scans(ctx)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, berrors.E("dispatch.Cluster", "input backend yielded no scans")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	prefix := runPrefix(cfg.Axes, scans)
	result := &Result{Output: cfg.Output}

	var jobs []string
	jobScan := make(map[string]string)
	var parts []string
	for _, scan := range scans {
		part := partialPath(cfg, prefix, scan)
		if _, err := file.Stat(ctx, part); err == nil {
			vlog.Infof("cluster: reusing existing partial %s for scan %s", part, scan)
			parts = append(parts, part)
			continue
		}
		id, err := sub.Submit(ctx, []string{"part", "-o", part, scan})
		if err != nil {
			vlog.Errorf("cluster: could not submit scan %s: %v", scan, err)
			result.Failed = append(result.Failed, FailedScan{Scan: scan, Err: err})
			continue
		}
		jobs = append(jobs, id)
		jobScan[id] = scan
		parts = append(parts, part)
	}
	vlog.Infof("cluster: submitted %d jobs, waiting", len(jobs))
	failed, err := waitJobs(ctx, poll, jobs, interval, cfg.MaxUnknownDuration)
	for _, id := range failed {
		result.Failed = append(result.Failed, FailedScan{
			Scan: jobScan[id],
			Err:  berrors.E("dispatch.Cluster", "job "+id+" never left unknown status"),
		})
	}
	if err != nil {
		return result, err
	}
	if len(parts) == 0 {
		return result, berrors.E("dispatch.Cluster", "all scans failed")
	}

	mergeArgs := func(output string, inputs []string) []string {
		args := []string{"merge"}
		if cfg.DeletePartials {
			args = append(args, "-delete")
		}
		args = append(args, "-o", output)
		return append(args, inputs...)
	}

	chunkCount := int(math.Ceil(float64(len(parts)) / float64(chunkSize)))
	inputs := parts
	if chunkCount > 1 {
		perChunk := int(math.Ceil(float64(len(parts)) / float64(chunkCount)))
		var chunkJobs []string
		var chunks []string
		for i := 0; i < chunkCount; i++ {
			lo := i * perChunk
			hi := lo + perChunk
			if hi > len(parts) {
				hi = len(parts)
			}
			chunk := chunkPath(cfg, prefix, i)
			id, err := sub.Submit(ctx, mergeArgs(chunk, parts[lo:hi]))
			if err != nil {
				return result, berrors.E("dispatch.Cluster", err)
			}
			chunkJobs = append(chunkJobs, id)
			chunks = append(chunks, chunk)
		}
		vlog.Infof("cluster: submitted %d chunk merges, waiting", len(chunkJobs))
		if _, err := waitJobs(ctx, poll, chunkJobs, interval, cfg.MaxUnknownDuration); err != nil {
			return result, err
		}
		inputs = chunks
	}

	id, err := sub.Submit(ctx, mergeArgs(cfg.Output, inputs))
	if err != nil {
		return result, berrors.E("dispatch.Cluster", err)
	}
	vlog.Infof("cluster: submitted final merge, waiting")
	if _, err := waitJobs(ctx, poll, []string{id}, interval, cfg.MaxUnknownDuration); err != nil {
		return result, err
	}
	if _, err := file.Stat(ctx, cfg.Output); err != nil {
		return result, berrors.E("dispatch.Cluster", berrors.IOError, "final merge produced no output", err)
	}
	result.Merged = len(parts)
	return result, nil
}
