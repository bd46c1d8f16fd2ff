package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"labelreel/internal/media/ffprobe"
)

// FFmpegDecoder probes with ffprobe and decodes through an ffmpeg rawvideo
// pipe in rgb24.
type FFmpegDecoder struct {
	FFmpegBinary  string
	FFprobeBinary string
	// CountFrames runs a full ffprobe frame count when the container does not
	// record nb_frames. Slow, but makes out-of-range detection exact.
	CountFrames bool
}

// NewFFmpegDecoder returns a decoder using the given binaries, defaulting to
// ffmpeg and ffprobe on PATH.
func NewFFmpegDecoder(ffmpegBinary, ffprobeBinary string) *FFmpegDecoder {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpegDecoder{FFmpegBinary: ffmpegBinary, FFprobeBinary: ffprobeBinary}
}

func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (VideoInfo, error) {
	result, err := ffprobe.Inspect(ctx, d.FFprobeBinary, path)
	if err != nil {
		return VideoInfo{}, err
	}
	stream, ok := result.PrimaryVideo()
	if !ok {
		return VideoInfo{}, errors.New("no video stream")
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return VideoInfo{}, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}
	count, exact := stream.FrameCount(result.DurationSeconds())
	if !exact && d.CountFrames {
		if n, err := ffprobe.CountFrames(ctx, d.FFprobeBinary, path); err == nil {
			count, exact = n, true
		}
	}
	return VideoInfo{
		Width:      stream.Width,
		Height:     stream.Height,
		FrameCount: count,
		ExactCount: exact,
	}, nil
}

func (d *FFmpegDecoder) Open(ctx context.Context, path string, info VideoInfo) (FrameReader, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", info.Width, info.Height)
	}
	ctx, cancel := context.WithCancel(ctx)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-",
	}
	cmd := exec.CommandContext(ctx, d.FFmpegBinary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	frameSize := info.Width * info.Height * 3
	return &rawReader{
		cmd:       cmd,
		cancel:    cancel,
		stderr:    stderr,
		r:         bufio.NewReaderSize(stdout, min(frameSize, 1<<20)),
		width:     info.Width,
		height:    info.Height,
		frameSize: frameSize,
		buf:       make([]byte, frameSize),
	}, nil
}

type rawReader struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stderr    *tailBuffer
	r         *bufio.Reader
	width     int
	height    int
	frameSize int
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

func (r *rawReader) Next() (image.Image, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return nil, r.streamEnd(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for src, dst := 0, 0; src < len(r.buf); src, dst = src+3, dst+4 {
		img.Pix[dst] = r.buf[src]
		img.Pix[dst+1] = r.buf[src+1]
		img.Pix[dst+2] = r.buf[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img, nil
}

func (r *rawReader) Skip() error {
	n, err := r.r.Discard(r.frameSize)
	if err != nil || n < r.frameSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return r.streamEnd(err)
	}
	return nil
}

// streamEnd turns a short read into io.EOF when ffmpeg exited cleanly, and
// into a descriptive error otherwise.
func (r *rawReader) streamEnd(readErr error) error {
	if !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		return readErr
	}
	if err := r.wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, r.stderr.String())
	}
	return io.EOF
}

func (r *rawReader) wait() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.cmd.Wait()
		r.cancel()
	})
	return r.closeErr
}

// Close stops ffmpeg if it is still running. An early stop is not an error.
func (r *rawReader) Close() error {
	r.cancel()
	err := r.wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if extra := t.buf.Len() - t.limit; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
