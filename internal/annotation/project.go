package annotation

import (
	"slices"
	"sort"
)

// Box is an axis-aligned box in percentage space with its resolved class id.
type Box struct {
	ClassID int
	X       float64
	Y       float64
	Width   float64
	Height  float64
}

// FramePlan lists the frames one video must yield and the boxes for each.
// Indices are 0-based decode positions in ascending order without
// duplicates. OutOfRange holds export frame numbers that fell below the
// configured frame base.
type FramePlan struct {
	VideoRef   string
	TaskIDs    []int64
	Indices    []int
	Boxes      map[int][]Box
	OutOfRange []int
}

// BoxCount returns the number of boxes across all frames.
func (p *FramePlan) BoxCount() int {
	total := 0
	for _, boxes := range p.Boxes {
		total += len(boxes)
	}
	return total
}

// Merge folds other into p. Boxes for a shared index are appended in the
// order other lists them; the index list stays sorted and unique.
func (p *FramePlan) Merge(other *FramePlan) {
	if other == nil {
		return
	}
	if p.Boxes == nil {
		p.Boxes = make(map[int][]Box)
	}
	p.TaskIDs = append(p.TaskIDs, other.TaskIDs...)
	for _, idx := range other.Indices {
		p.Boxes[idx] = append(p.Boxes[idx], other.Boxes[idx]...)
	}
	p.Indices = sortedKeys(p.Boxes)
	p.OutOfRange = append(p.OutOfRange, other.OutOfRange...)
	slices.Sort(p.OutOfRange)
	p.OutOfRange = slices.Compact(p.OutOfRange)
}

// ProjectOptions tunes keyframe projection.
type ProjectOptions struct {
	// FrameBase is subtracted from export frame numbers to obtain 0-based
	// decode indices. Label Studio numbers frames from 1.
	FrameBase int
}

// ProjectStats counts keyframes that did not become boxes.
type ProjectStats struct {
	Tasks      int
	Keyframes  int
	Disabled   int
	Unnumbered int
	OutOfRange int
}

// ValidateLabels checks every sequence label against mapping and reports all
// unmapped labels at once. An empty label is unmapped.
func ValidateLabels(tasks []Task, mapping *ClassMapping) error {
	var missing []string
	for _, label := range Labels(tasks) {
		if _, ok := mapping.Lookup(label); !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &MissingClassMappingError{Labels: missing}
}

// Project validates labels, then turns each task's keyframes into a plan.
// Tasks sharing a video reference are merged into a single plan. Plans are
// returned in the order their reference first appears.
func Project(tasks []Task, mapping *ClassMapping, opts ProjectOptions) ([]*FramePlan, ProjectStats, error) {
	var stats ProjectStats
	if err := ValidateLabels(tasks, mapping); err != nil {
		return nil, stats, err
	}

	byRef := make(map[string]*FramePlan)
	var order []*FramePlan
	for _, task := range tasks {
		stats.Tasks++
		plan := projectTask(task, mapping, opts, &stats)
		if existing, ok := byRef[task.VideoRef]; ok {
			existing.Merge(plan)
			continue
		}
		byRef[task.VideoRef] = plan
		order = append(order, plan)
	}
	return order, stats, nil
}

func projectTask(task Task, mapping *ClassMapping, opts ProjectOptions, stats *ProjectStats) *FramePlan {
	plan := &FramePlan{
		VideoRef: task.VideoRef,
		TaskIDs:  []int64{task.ID},
		Boxes:    make(map[int][]Box),
	}
	below := make(map[int]struct{})
	for _, seq := range task.Sequences {
		classID, _ := mapping.Lookup(seq.Label)
		for _, kf := range seq.Keyframes {
			stats.Keyframes++
			switch {
			case !kf.Numbered:
				stats.Unnumbered++
				continue
			case !kf.Enabled:
				stats.Disabled++
				continue
			}
			idx := kf.Frame - opts.FrameBase
			if idx < 0 {
				stats.OutOfRange++
				below[kf.Frame] = struct{}{}
				continue
			}
			plan.Boxes[idx] = append(plan.Boxes[idx], Box{
				ClassID: classID,
				X:       kf.X,
				Y:       kf.Y,
				Width:   kf.Width,
				Height:  kf.Height,
			})
		}
	}
	plan.Indices = sortedKeys(plan.Boxes)
	plan.OutOfRange = sortedKeys(below)
	return plan
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
