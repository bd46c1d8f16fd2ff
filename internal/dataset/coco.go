package dataset

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"labelreel/internal/annotation"
	"labelreel/internal/extract"
	"labelreel/internal/fileutil"
)

// Catalog is the COCO document written to annotations.json.
type Catalog struct {
	Info        Info         `json:"info"`
	Licenses    []License    `json:"licenses"`
	Categories  []Category   `json:"categories"`
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
}

type Info struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

type License struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type Image struct {
	ID           int64  `json:"id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileName     string `json:"file_name"`
	License      int    `json:"license"`
	DateCaptured string `json:"date_captured"`
}

type Annotation struct {
	ID           int64       `json:"id"`
	ImageID      int64       `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"`
	Area         float64     `json:"area"`
	Segmentation [][]float64 `json:"segmentation"`
	IsCrowd      int         `json:"iscrowd"`
}

// PixelBox converts a percentage box into a COCO pixel box for an image of
// the given size. x and y are clamped into [0, dim-1]; width and height are
// cut so the box ends inside the image. ok is false when nothing is left.
func PixelBox(box annotation.Box, width, height int) (bbox [4]float64, ok bool) {
	w := float64(width)
	h := float64(height)
	px := clampRange(box.X/100*w, 0, w-1)
	py := clampRange(box.Y/100*h, 0, h-1)
	pw := math.Min(box.Width/100*w, w-px)
	ph := math.Min(box.Height/100*h, h-py)
	if math.IsNaN(px) || math.IsNaN(py) || !(pw > 0) || !(ph > 0) {
		return bbox, false
	}
	return [4]float64{px, py, pw, ph}, true
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

type cocoEmitter struct {
	root      string
	encoder   imageEncoder
	sequencer *Sequencer
	now       func() time.Time

	mu      sync.Mutex
	catalog Catalog
}

func newCOCOEmitter(root string, mapping *annotation.ClassMapping, encoder imageEncoder, seq *Sequencer, now func() time.Time) *cocoEmitter {
	categories := make([]Category, 0, mapping.Len())
	for _, entry := range mapping.Entries() {
		categories = append(categories, Category{ID: entry.ID, Name: entry.Name, Supercategory: "object"})
	}
	created := now()
	return &cocoEmitter{
		root:      root,
		encoder:   encoder,
		sequencer: seq,
		now:       now,
		catalog: Catalog{
			Info: Info{
				Description: "Video annotation dataset converted from LabelStudio",
				Version:     "1.0",
				Year:        created.Year(),
				Contributor: "Video Annotation Converter",
				DateCreated: created.Format(time.RFC3339),
			},
			Licenses:    []License{{ID: 1, Name: "Unknown"}},
			Categories:  categories,
			Images:      []Image{},
			Annotations: []Annotation{},
		},
	}
}

func (e *cocoEmitter) BeginFrame(frame extract.Frame) (FrameSink, error) {
	fileName, err := e.encoder.writeImage(filepath.Join(e.root, ImagesDir), FrameName(frame.Name, frame.Number), frame.Image)
	if err != nil {
		return nil, err
	}
	record := Image{
		ID:           e.sequencer.NextImageID(),
		Width:        frame.Width,
		Height:       frame.Height,
		FileName:     fileName,
		License:      0,
		DateCaptured: e.now().Format(time.RFC3339),
	}
	return &cocoSink{emitter: e, image: record}, nil
}

// Finalize writes annotations.json with images and annotations ordered by id.
func (e *cocoEmitter) Finalize() (Totals, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slices.SortFunc(e.catalog.Images, func(a, b Image) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(e.catalog.Annotations, func(a, b Annotation) int { return cmp.Compare(a.ID, b.ID) })
	data, err := json.MarshalIndent(e.catalog, "", "  ")
	if err != nil {
		return Totals{}, fmt.Errorf("encode %s: %w", CatalogFileName, err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(e.root, CatalogFileName), data, 0o644); err != nil {
		return Totals{}, fmt.Errorf("write %s: %w", CatalogFileName, err)
	}
	return Totals{Images: len(e.catalog.Images), Annotations: len(e.catalog.Annotations)}, nil
}

type cocoSink struct {
	emitter     *cocoEmitter
	image       Image
	annotations []Annotation
	closed      bool
}

func (s *cocoSink) AddBox(box annotation.Box) error {
	bbox, ok := PixelBox(box, s.image.Width, s.image.Height)
	if !ok {
		return invalidBox(box, "zero area after clamping to image bounds")
	}
	s.annotations = append(s.annotations, Annotation{
		ID:           s.emitter.sequencer.NextAnnotationID(),
		ImageID:      s.image.ID,
		CategoryID:   box.ClassID,
		BBox:         bbox,
		Area:         bbox[2] * bbox[3],
		Segmentation: [][]float64{},
		IsCrowd:      0,
	})
	return nil
}

// Close appends the image and its annotations to the catalog.
func (s *cocoSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.emitter.mu.Lock()
	defer s.emitter.mu.Unlock()
	s.emitter.catalog.Images = append(s.emitter.catalog.Images, s.image)
	s.emitter.catalog.Annotations = append(s.emitter.catalog.Annotations, s.annotations...)
	return nil
}
