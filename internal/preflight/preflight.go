package preflight

import (
	"context"
	"fmt"

	"labelreel/internal/config"
	"labelreel/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Warning marks a failed check that does not block a run.
	Warning bool
	Detail  string
}

// Failed returns the results that did not pass and are not warnings.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Warning {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
// The Label Studio check only runs when includeRemote is set.
func RunAll(ctx context.Context, cfg *config.Config, includeRemote bool) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	results = append(results, DepResults(CheckSystemDeps(ctx, cfg))...)
	results = append(results, CheckFileReadable("Annotations file", cfg.Paths.AnnotationsFile))
	results = append(results, CheckDirectoryReadable("Video directory", cfg.Paths.VideoDir))
	results = append(results, CheckWritableTarget("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes))
	results = append(results, CheckWritableTarget("State directory", cfg.Paths.StateDir))
	if includeRemote {
		results = append(results, CheckLabelStudioFromConfig(ctx, cfg))
	}
	return results
}

// CheckSystemDeps evaluates the decode tools named by cfg, with versions.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
	return deps.WithVersions(ctx, statuses)
}

// DepResults converts dependency statuses into preflight results.
func DepResults(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		r := Result{Name: s.Name, Passed: s.Available, Warning: s.Optional && !s.Available}
		switch {
		case !s.Available:
			r.Detail = s.Detail
		case s.Version != "":
			r.Detail = s.Version
		default:
			r.Detail = fmt.Sprintf("%s (version unknown)", s.Path)
		}
		results = append(results, r)
	}
	return results
}
