package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Keyframe is one manually placed box position. Coordinates are percentages
// of the frame size in [0,100] with X,Y at the top-left corner. Frame uses the
// export's numbering; Numbered is false when the export omitted it.
type Keyframe struct {
	Frame    int
	Numbered bool
	Enabled  bool
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Time     float64
	Rotation float64
}

// Sequence is one tracked object: a label plus its keyframes.
type Sequence struct {
	Label       string
	Keyframes   []Keyframe
	FramesCount int
	Duration    float64
}

// Task is one annotated video from the export.
type Task struct {
	ID        int64
	VideoRef  string
	Sequences []Sequence
}

type rawTask struct {
	ID    int64    `json:"id"`
	Video *string  `json:"video"`
	Box   []rawBox `json:"box"`
}

type rawBox struct {
	Labels      []string      `json:"labels"`
	FramesCount int           `json:"framesCount"`
	Duration    float64       `json:"duration"`
	Sequence    []rawKeyframe `json:"sequence"`
}

type rawKeyframe struct {
	Frame    *int    `json:"frame"`
	Enabled  *bool   `json:"enabled"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Time     float64 `json:"time"`
	Rotation float64 `json:"rotation"`
}

// Decode reads a JSON_MIN export: an array of tasks with a video reference
// and a list of labelled keyframe sequences.
func Decode(r io.Reader) ([]Task, error) {
	var raw []rawTask
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode annotation export: %w", err)
	}
	tasks := make([]Task, 0, len(raw))
	for _, rt := range raw {
		task := Task{ID: rt.ID}
		if rt.Video != nil {
			task.VideoRef = strings.TrimSpace(*rt.Video)
		}
		for _, box := range rt.Box {
			seq := Sequence{FramesCount: box.FramesCount, Duration: box.Duration}
			if len(box.Labels) > 0 {
				seq.Label = strings.TrimSpace(box.Labels[0])
			}
			seq.Keyframes = make([]Keyframe, 0, len(box.Sequence))
			for _, item := range box.Sequence {
				kf := Keyframe{
					Enabled:  item.Enabled == nil || *item.Enabled,
					X:        item.X,
					Y:        item.Y,
					Width:    item.Width,
					Height:   item.Height,
					Time:     item.Time,
					Rotation: item.Rotation,
				}
				if item.Frame != nil {
					kf.Frame = *item.Frame
					kf.Numbered = true
				}
				seq.Keyframes = append(seq.Keyframes, kf)
			}
			task.Sequences = append(task.Sequences, seq)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// LoadFile decodes the export stored at path.
func LoadFile(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation export: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Labels returns every distinct label used across tasks, in first-seen order.
func Labels(tasks []Task) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, task := range tasks {
		for _, seq := range task.Sequences {
			if _, ok := seen[seq.Label]; ok {
				continue
			}
			seen[seq.Label] = struct{}{}
			labels = append(labels, seq.Label)
		}
	}
	return labels
}
