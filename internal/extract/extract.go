package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBatchSize bounds how many decoded frames are held at once.
const DefaultBatchSize = 500

var (
	// ErrVideoOpen means the video could not be probed or decoded at all.
	ErrVideoOpen = errors.New("video open failed")
	// ErrFrameOutOfRange marks a requested index the video does not contain.
	ErrFrameOutOfRange = errors.New("frame out of range")
	// ErrDecode means decoding failed partway through the stream.
	ErrDecode = errors.New("frame decode failed")
)

// Frame is one decoded frame at a 0-based decode index.
type Frame struct {
	Image  image.Image
	Width  int
	Height int
	Video  string
	Index  int

	// Name is the stem used for output file names, unique within a run.
	Name   string
	// Number is the frame number as annotated: Index plus Options.NumberBase.
	Number int
}

// VideoInfo is what a Decoder learns about a video before decoding.
type VideoInfo struct {
	Width      int
	Height     int
	FrameCount int
	// ExactCount is false when FrameCount was estimated from duration.
	ExactCount bool
}

// Decoder probes and opens videos.
type Decoder interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
	Open(ctx context.Context, path string, info VideoInfo) (FrameReader, error)
}

// FrameReader walks a video's frames strictly forward. Next and Skip return
// io.EOF once the stream is exhausted.
type FrameReader interface {
	Next() (image.Image, error)
	Skip() error
	Close() error
}

// BatchProgress is reported after every non-empty batch.
type BatchProgress struct {
	Video   string
	Batch   int
	Emitted int
	Total   int
}

// Options configures an extraction.
type Options struct {
	BatchSize int
	Decoder   Decoder
	OnBatch   func(BatchProgress)

	// NumberBase is added to each decode index to form Frame.Number.
	NumberBase int
	// Name overrides Frame.Name. Defaults to the file stem of the video.
	Name       string
}

// Extraction is a lazy cursor over the requested frames of one video.
type Extraction struct {
	path       string
	info       VideoInfo
	name       string
	batchSize  int
	numberBase int
	onBatch    func(BatchProgress)

	reader  FrameReader
	pending []int
	pos     int
	cursor  int
	batch   int
	emitted int
	skipped []int
	done    bool
}

// Open probes path and prepares to yield the frames at indices. Indices must
// be strictly ascending; anything else is a programming error and panics.
// Probe or decoder start failures are reported as ErrVideoOpen.
func Open(ctx context.Context, path string, indices []int, opts Options) (*Extraction, error) {
	if !strictlyAscending(indices) {
		panic("extract: indices must be strictly ascending")
	}
	if opts.Decoder == nil {
		opts.Decoder = NewFFmpegDecoder("", "")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Name == "" {
		opts.Name = Stem(path)
	}

	info, err := opts.Decoder.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: probe %s: %v", ErrVideoOpen, path, err)
	}

	e := &Extraction{
		path:       path,
		info:       info,
		name:       opts.Name,
		batchSize:  opts.BatchSize,
		numberBase: opts.NumberBase,
		onBatch:    opts.OnBatch,
	}
	low, _ := slices.BinarySearch(indices, 0)
	high := len(indices)
	if info.ExactCount {
		high, _ = slices.BinarySearch(indices, info.FrameCount)
		high = max(high, low)
	}
	e.pending = indices[low:high]
	e.skipped = append(slices.Clone(indices[:low]), indices[high:]...)
	if len(e.pending) == 0 {
		e.done = true
		return e, nil
	}

	reader, err := opts.Decoder.Open(ctx, path, info)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrVideoOpen, path, err)
	}
	e.reader = reader
	return e, nil
}

// Info returns the probed video metadata.
func (e *Extraction) Info() VideoInfo {
	return e.info
}

// Total is the number of frames this extraction will attempt to emit.
func (e *Extraction) Total() int {
	return len(e.pending)
}

// Skipped returns the requested indices that the video does not contain.
// Indices past the end of a stream whose length was only estimated are
// added once the stream ends.
func (e *Extraction) Skipped() []int {
	return slices.Clone(e.skipped)
}

// NextBatch decodes up to BatchSize requested frames. It returns io.EOF once
// every requested index has been emitted or skipped.
func (e *Extraction) NextBatch(ctx context.Context) ([]Frame, error) {
	if e.done {
		return nil, io.EOF
	}
	frames := make([]Frame, 0, min(e.batchSize, len(e.pending)-e.pos))
	for len(frames) < e.batchSize && e.pos < len(e.pending) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := e.pending[e.pos]
		for e.cursor < target {
			if err := e.reader.Skip(); err != nil {
				return e.finishEarly(frames, err)
			}
			e.cursor++
		}
		img, err := e.reader.Next()
		if err != nil {
			return e.finishEarly(frames, err)
		}
		frames = append(frames, e.frame(img, target))
		e.cursor++
		e.pos++
	}
	if e.pos >= len(e.pending) {
		e.stop()
	}
	return e.report(frames), nil
}

// Close stops the decoder. It is safe to call more than once.
func (e *Extraction) Close() error {
	if e.reader == nil {
		return nil
	}
	err := e.reader.Close()
	e.reader = nil
	return err
}

func (e *Extraction) frame(img image.Image, index int) Frame {
	bounds := img.Bounds()
	return Frame{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Video:  e.path,
		Name:   e.name,
		Index:  index,
		Number: index + e.numberBase,
	}
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// finishEarly handles a reader error. EOF means the remaining requested
// indices do not exist; anything else aborts the extraction.
func (e *Extraction) finishEarly(frames []Frame, err error) ([]Frame, error) {
	if !errors.Is(err, io.EOF) {
		e.stop()
		return nil, fmt.Errorf("%w: %s at index %d: %v", ErrDecode, e.path, e.cursor, err)
	}
	e.skipped = append(e.skipped, e.pending[e.pos:]...)
	slices.Sort(e.skipped)
	e.pos = len(e.pending)
	e.stop()
	if len(frames) == 0 {
		return nil, io.EOF
	}
	return e.report(frames), nil
}

func (e *Extraction) report(frames []Frame) []Frame {
	if len(frames) == 0 {
		return frames
	}
	e.batch++
	e.emitted += len(frames)
	if e.onBatch != nil {
		e.onBatch(BatchProgress{
			Video:   e.path,
			Batch:   e.batch,
			Emitted: e.emitted,
			Total:   len(e.pending),
		})
	}
	return frames
}

func (e *Extraction) stop() {
	e.done = true
	_ = e.Close()
}

func strictlyAscending(indices []int) bool {
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			return false
		}
	}
	return true
}
