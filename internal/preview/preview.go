// Package preview draws YOLO labels back onto exported frames so a person can
// eyeball a dataset before training on it.
package preview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fogleman/gg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"labelreel/internal/dataset"
	"labelreel/internal/fileutil"
	"labelreel/internal/logging"
)

// DirName is the directory under the dataset root that receives previews.
const DirName = "preview"

const defaultLineWidth = 2

// palette cycles per class id.
var palette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
	{R: 210, G: 245, B: 60, A: 255},
}

// Options controls rendering.
type Options struct {
	// Limit caps the number of rendered frames; 0 renders all.
	Limit     int
	LineWidth float64
	Logger    *slog.Logger
}

// Result summarizes a render pass.
type Result struct {
	Dir      string
	Rendered int
	Boxes    int
	Missing  int
}

// Render draws every label file of the YOLO dataset in dir onto its image and
// writes the result to dir/preview. Frames without boxes are copied unchanged.
func Render(ctx context.Context, dir string, opts Options) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "preview")
	result := Result{Dir: filepath.Join(dir, DirName)}
	lineWidth := opts.LineWidth
	if lineWidth <= 0 {
		lineWidth = defaultLineWidth
	}

	labelsDir := filepath.Join(dir, dataset.LabelsDir)
	labels, err := filepath.Glob(filepath.Join(labelsDir, "*.txt"))
	if err != nil {
		return result, fmt.Errorf("list labels: %w", err)
	}
	if len(labels) == 0 {
		return result, fmt.Errorf("no YOLO labels in %s", labelsDir)
	}
	sort.Strings(labels)
	names, err := loadClassNames(filepath.Join(dir, dataset.ClassesFile))
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(result.Dir, 0o755); err != nil {
		return result, fmt.Errorf("create preview directory: %w", err)
	}

	for _, labelPath := range labels {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.Limit > 0 && result.Rendered >= opts.Limit {
			break
		}
		stem := strings.TrimSuffix(filepath.Base(labelPath), ".txt")
		imagePath, ok := findImage(filepath.Join(dir, dataset.ImagesDir), stem)
		if !ok {
			logging.WarnWithContext(logger, "label has no matching image", "preview_image_missing",
				logging.String("label", labelPath),
				logging.String(logging.FieldImpact, "frame left out of the preview"),
			)
			result.Missing++
			continue
		}
		boxes, err := renderFrame(imagePath, labelPath, filepath.Join(result.Dir, filepath.Base(imagePath)), names, lineWidth)
		if err != nil {
			return result, err
		}
		result.Rendered++
		result.Boxes += boxes
	}
	logger.Info("preview rendered",
		logging.String("dir", result.Dir),
		logging.Int("frames", result.Rendered),
		logging.Int("boxes", result.Boxes),
	)
	return result, nil
}

func renderFrame(imagePath, labelPath, outPath string, names []string, lineWidth float64) (int, error) {
	labels, err := readLabels(labelPath)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		if err := fileutil.CopyFile(imagePath, outPath); err != nil {
			return 0, fmt.Errorf("copy %s: %w", filepath.Base(imagePath), err)
		}
		return 0, nil
	}

	img, err := decodeImage(imagePath)
	if err != nil {
		return 0, err
	}
	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())
	dc.SetLineWidth(lineWidth)
	for _, label := range labels {
		c := palette[label.ClassID%len(palette)]
		bw := label.W * w
		bh := label.H * h
		x := label.CX*w - bw/2
		y := label.CY*h - bh/2
		dc.SetColor(c)
		dc.DrawRectangle(x, y, bw, bh)
		dc.Stroke()

		caption := className(names, label.ClassID)
		tw, th := dc.MeasureString(caption)
		ty := y - 2
		if ty-th < 0 {
			ty = y + th + 2
		}
		dc.DrawRectangle(x, ty-th-1, tw+4, th+3)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawString(caption, x+2, ty)
	}
	if err := dataset.WriteImage(outPath, dc.Image(), 90); err != nil {
		return 0, err
	}
	return len(labels), nil
}

func readLabels(path string) ([]dataset.YOLOLabel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer f.Close()

	var labels []dataset.YOLOLabel
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		label, err := dataset.ParseYOLOLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read label file: %w", err)
	}
	return labels, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func findImage(imagesDir, stem string) (string, bool) {
	for _, ext := range []string{".jpg", ".png", ".bmp", ".tiff"} {
		candidate := filepath.Join(imagesDir, stem+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func loadClassNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		names = append(names, strings.TrimSpace(line))
	}
	return names, nil
}

func className(names []string, id int) string {
	if id >= 0 && id < len(names) && names[id] != "" {
		return names[id]
	}
	return fmt.Sprintf("class %d", id)
}
