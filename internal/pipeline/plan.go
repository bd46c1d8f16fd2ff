package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"labelreel/internal/annotation"
	"labelreel/internal/extract"
	"labelreel/internal/videoresolve"
)

// VideoJob is the merged work for one local video file.
type VideoJob struct {
	Path string
	// Name prefixes the job's output files. It is the file stem unless
	// another job in the plan already claimed that stem.
	Name string
	Refs []videoresolve.ResolvedVideo
	Plan *annotation.FramePlan
}

// Renamed reports whether the job's output name differs from its file stem.
func (j VideoJob) Renamed() bool {
	return j.Name != extract.Stem(j.Path)
}

// Unresolved is a video reference no local file matched.
type Unresolved struct {
	Ref     string
	TaskIDs []int64
	Err     error
}

// WorkPlan is the projected and resolved input of a run.
type WorkPlan struct {
	Jobs       []VideoJob
	Unresolved []Unresolved
	Stats      annotation.ProjectStats
}

// Frames returns the number of frame indices across all jobs.
func (w *WorkPlan) Frames() int {
	total := 0
	for _, job := range w.Jobs {
		total += len(job.Plan.Indices)
	}
	return total
}

// Boxes returns the number of boxes across all jobs.
func (w *WorkPlan) Boxes() int {
	total := 0
	for _, job := range w.Jobs {
		total += job.Plan.BoxCount()
	}
	return total
}

// PlanOptions configures BuildPlan.
type PlanOptions struct {
	FrameBase int
	Resolver  *videoresolve.Resolver
	Logger    *slog.Logger
}

// BuildPlan projects tasks into frame plans, resolves each plan's video
// against videos, and merges plans that resolve to the same file. It fails
// only when a label has no class mapping.
func BuildPlan(tasks []annotation.Task, videos []string, mapping *annotation.ClassMapping, opts PlanOptions) (*WorkPlan, error) {
	plans, stats, err := annotation.Project(tasks, mapping, annotation.ProjectOptions{FrameBase: opts.FrameBase})
	if err != nil {
		return nil, err
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = videoresolve.New(videoresolve.Options{Logger: opts.Logger})
	}

	work := &WorkPlan{Stats: stats}
	byPath := make(map[string]int)
	for _, plan := range plans {
		resolved, err := resolver.Resolve(plan.VideoRef, videos)
		if err != nil {
			if !errors.Is(err, videoresolve.ErrNoMatchingVideo) {
				return nil, err
			}
			work.Unresolved = append(work.Unresolved, Unresolved{Ref: plan.VideoRef, TaskIDs: plan.TaskIDs, Err: err})
			continue
		}
		if i, ok := byPath[resolved.Path]; ok {
			job := &work.Jobs[i]
			job.Plan.Merge(plan)
			job.Refs = append(job.Refs, resolved)
			continue
		}
		byPath[resolved.Path] = len(work.Jobs)
		work.Jobs = append(work.Jobs, VideoJob{
			Path: resolved.Path,
			Refs: []videoresolve.ResolvedVideo{resolved},
			Plan: plan,
		})
	}
	assignNames(work.Jobs)
	return work, nil
}

// assignNames gives every job a distinct output name. Videos in different
// directories may share a stem; later jobs get a numeric suffix.
func assignNames(jobs []VideoJob) {
	taken := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		taken[extract.Stem(job.Path)] = true
	}
	claimed := make(map[string]bool, len(jobs))
	for i := range jobs {
		stem := extract.Stem(jobs[i].Path)
		name := stem
		if claimed[name] {
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s-%d", stem, n)
				if !taken[name] && !claimed[name] {
					break
				}
			}
		}
		claimed[name] = true
		jobs[i].Name = name
	}
}
