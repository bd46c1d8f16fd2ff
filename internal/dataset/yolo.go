package dataset

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"labelreel/internal/annotation"
	"labelreel/internal/extract"
	"labelreel/internal/fileutil"
)

// NormalizeBox converts a percentage box (top-left origin) into the YOLO
// center form in [0,1]. ok is false when the clamped box has no area.
func NormalizeBox(box annotation.Box) (cx, cy, w, h float64, ok bool) {
	x := box.X / 100
	y := box.Y / 100
	w = box.Width / 100
	h = box.Height / 100
	cx = clamp01(x + w/2)
	cy = clamp01(y + h/2)
	w = clamp01(w)
	h = clamp01(h)
	if math.IsNaN(cx) || math.IsNaN(cy) || !(w > 0) || !(h > 0) {
		return 0, 0, 0, 0, false
	}
	return cx, cy, w, h, true
}

// FormatYOLOLine renders one label line.
func FormatYOLOLine(classID int, cx, cy, w, h float64) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", classID, cx, cy, w, h)
}

// YOLOLabel is one parsed label line.
type YOLOLabel struct {
	ClassID int
	CX      float64
	CY      float64
	W       float64
	H       float64
}

// ParseYOLOLine parses a line written by FormatYOLOLine.
func ParseYOLOLine(line string) (YOLOLabel, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return YOLOLabel{}, fmt.Errorf("yolo label %q: want 5 fields, got %d", line, len(fields))
	}
	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return YOLOLabel{}, fmt.Errorf("yolo label %q: class id: %w", line, err)
	}
	var values [4]float64
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return YOLOLabel{}, fmt.Errorf("yolo label %q: %w", line, err)
		}
		values[i] = v
	}
	return YOLOLabel{ClassID: classID, CX: values[0], CY: values[1], W: values[2], H: values[3]}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

type yoloEmitter struct {
	root    string
	mapping *annotation.ClassMapping
	encoder imageEncoder

	mu     sync.Mutex
	totals Totals
}

func newYOLOEmitter(root string, mapping *annotation.ClassMapping, encoder imageEncoder) *yoloEmitter {
	return &yoloEmitter{root: root, mapping: mapping, encoder: encoder}
}

func (e *yoloEmitter) BeginFrame(frame extract.Frame) (FrameSink, error) {
	name := FrameName(frame.Name, frame.Number)
	if _, err := e.encoder.writeImage(filepath.Join(e.root, ImagesDir), name, frame.Image); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.totals.Images++
	e.mu.Unlock()
	return &yoloSink{emitter: e, name: name}, nil
}

func (e *yoloEmitter) Finalize() (Totals, error) {
	names := e.mapping.Names()
	if err := fileutil.WriteFileAtomic(filepath.Join(e.root, ClassesFile), []byte(strings.Join(names, "\n")), 0o644); err != nil {
		return Totals{}, fmt.Errorf("write %s: %w", ClassesFile, err)
	}
	data, err := marshalDataConfig(names)
	if err != nil {
		return Totals{}, err
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(e.root, DataConfigFile), data, 0o644); err != nil {
		return Totals{}, fmt.Errorf("write %s: %w", DataConfigFile, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals, nil
}

type yoloSink struct {
	emitter *yoloEmitter
	name    string
	lines   []string
	closed  bool
}

func (s *yoloSink) AddBox(box annotation.Box) error {
	cx, cy, w, h, ok := NormalizeBox(box)
	if !ok {
		return invalidBox(box, "zero area after normalization")
	}
	s.lines = append(s.lines, FormatYOLOLine(box.ClassID, cx, cy, w, h))
	return nil
}

// Close writes the label file. A frame without valid boxes gets an empty
// label file so images and labels stay paired.
func (s *yoloSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	path := filepath.Join(s.emitter.root, LabelsDir, s.name+".txt")
	if err := fileutil.WriteFileAtomic(path, []byte(strings.Join(s.lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("write labels %s: %w", filepath.Base(path), err)
	}
	s.emitter.mu.Lock()
	s.emitter.totals.Annotations += len(s.lines)
	s.emitter.mu.Unlock()
	return nil
}

// dataConfig is the training config document. Field order is the key order
// in the written file.
type dataConfig struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

func marshalDataConfig(names []string) ([]byte, error) {
	doc := dataConfig{
		Path:  ".",
		Train: ImagesDir,
		Val:   ImagesDir,
		Test:  ImagesDir,
		NC:    len(names),
		Names: names,
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode %s: %w", DataConfigFile, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", DataConfigFile, err)
	}
	return buf.Bytes(), nil
}
