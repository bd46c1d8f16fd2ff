package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labelreel/internal/annotation"
	"labelreel/internal/extract"
)

// ErrInvalidBBox marks a box that is degenerate after clamping.
var ErrInvalidBBox = errors.New("invalid bounding box")

// Format selects the on-disk dataset layout.
type Format string

const (
	FormatYOLO Format = "yolo"
	FormatCOCO Format = "coco"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatYOLO:
		return FormatYOLO, nil
	case FormatCOCO:
		return FormatCOCO, nil
	default:
		return "", fmt.Errorf("unsupported dataset format %q (want yolo or coco)", value)
	}
}

const (
	ImagesDir       = "images"
	LabelsDir       = "labels"
	ClassesFile     = "classes.txt"
	DataConfigFile  = "data.yaml"
	CatalogFileName = "annotations.json"
)

// Totals counts what an emitter persisted.
type Totals struct {
	Images      int
	Annotations int
}

// Emitter persists frames one at a time and writes run-level files once.
// BeginFrame writes the frame image immediately; boxes go through the
// returned sink, and Close on the sink commits them.
type Emitter interface {
	BeginFrame(frame extract.Frame) (FrameSink, error)
	Finalize() (Totals, error)
}

// FrameSink collects the boxes for one frame.
type FrameSink interface {
	// AddBox records one box. A degenerate box returns an error wrapping
	// ErrInvalidBBox and is not recorded.
	AddBox(box annotation.Box) error
	Close() error
}

// Options configures an emitter.
type Options struct {
	ImageFormat string
	JPEGQuality int
	// Sequencer assigns catalog ids. A fresh one is created when nil.
	Sequencer *Sequencer
	// Now stamps catalog records. Defaults to time.Now.
	Now func() time.Time
}

// New creates the output layout under root and returns the emitter for
// format. The caller must have validated the class mapping already.
func New(format Format, root string, mapping *annotation.ClassMapping, opts Options) (Emitter, error) {
	if mapping == nil || mapping.Len() == 0 {
		return nil, errors.New("dataset: class mapping is required")
	}
	encoder, err := newImageEncoder(opts.ImageFormat, opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	if opts.Sequencer == nil {
		opts.Sequencer = NewSequencer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dirs := []string{filepath.Join(root, ImagesDir)}
	if format == FormatYOLO {
		dirs = append(dirs, filepath.Join(root, LabelsDir))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dataset directory: %w", err)
		}
	}

	switch format {
	case FormatYOLO:
		return newYOLOEmitter(root, mapping, encoder), nil
	case FormatCOCO:
		return newCOCOEmitter(root, mapping, encoder, opts.Sequencer, opts.Now), nil
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
}

// FrameName returns the base name shared by a frame's image and label file:
// frame_<video name>_<annotated frame number padded to 6 digits>.
func FrameName(name string, number int) string {
	return fmt.Sprintf("frame_%s_%06d", name, number)
}

func invalidBox(box annotation.Box, reason string) error {
	return fmt.Errorf("%w: class %d x=%g y=%g w=%g h=%g: %s",
		ErrInvalidBBox, box.ClassID, box.X, box.Y, box.Width, box.Height, reason)
}
