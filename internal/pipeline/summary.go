package pipeline

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// IssueKind classifies a non-fatal problem.
type IssueKind string

const (
	IssueNoMatchingVideo IssueKind = "no_matching_video"
	IssueFrameOutOfRange IssueKind = "frame_out_of_range"
	IssueVideoOpen       IssueKind = "video_open_failure"
	IssueDecode          IssueKind = "decode_failure"
	IssueInvalidBBox     IssueKind = "invalid_bbox"
)

// Summary reports the outcome of a run.
type Summary struct {
	RunID         string
	Format        string
	OutputDir     string
	Tasks         int
	Videos        int
	Images        int
	Annotations   int
	FramesSkipped int
	Issues        map[IssueKind]int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// IssueKinds returns the kinds present in the summary, sorted.
func (s Summary) IssueKinds() []IssueKind {
	return slices.Sorted(maps.Keys(s.Issues))
}

// IssueTotal sums all issue counts.
func (s Summary) IssueTotal() int {
	total := 0
	for _, n := range s.Issues {
		total += n
	}
	return total
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// tally accumulates issue counts from concurrent workers.
type tally struct {
	mu      sync.Mutex
	issues  map[IssueKind]int
	skipped int
}

func newTally() *tally {
	return &tally{issues: make(map[IssueKind]int)}
}

func (t *tally) add(kind IssueKind, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issues[kind] += n
}

// skip records planned frames that produced no image.
func (t *tally) skip(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped += n
}

func (t *tally) snapshot() (map[IssueKind]int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.issues), t.skipped
}
