package extract

import (
	"context"
	"errors"
	"image"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"labelreel/internal/testsupport"
)

func stubFFprobe(t *testing.T, dir string, frames int) string {
	t.Helper()
	doc := testsupport.FFprobeJSON(2, 1, frames, "0.12", "25/1")
	return testsupport.StubBinary(t, dir, "ffprobe", "cat <<'JSON'\n"+doc+"\nJSON\n")
}

func TestFFmpegDecoderStreamsRawFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	probe := stubFFprobe(t, dir, 3)
	ffmpeg := testsupport.StubBinary(t, dir, "ffmpeg",
		`printf '\001\001\001\001\001\001\002\002\002\002\002\002\003\003\003\003\003\003'`+"\n")

	dec := NewFFmpegDecoder(ffmpeg, probe)
	info, err := dec.Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info != (VideoInfo{Width: 2, Height: 1, FrameCount: 3, ExactCount: true}) {
		t.Fatalf("unexpected info: %+v", info)
	}

	e, err := Open(context.Background(), "clip.mp4", []int{0, 2}, Options{Decoder: dec})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()
	frames, err := e.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	for i, want := range []uint8{1, 3} {
		rgba, ok := frames[i].Image.(*image.RGBA)
		if !ok {
			t.Fatalf("unexpected image type %T", frames[i].Image)
		}
		if rgba.Pix[0] != want || rgba.Pix[3] != 0xff || rgba.Pix[4] != want {
			t.Fatalf("frame %d pixels = %v", frames[i].Index, rgba.Pix)
		}
	}
	if _, err := e.NextBatch(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestFFmpegDecoderReportsProcessFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	probe := stubFFprobe(t, dir, 3)
	ffmpeg := testsupport.StubBinary(t, dir, "ffmpeg", "echo 'invalid data found' >&2\nexit 1\n")

	e, err := Open(context.Background(), "clip.mp4", []int{1}, Options{Decoder: NewFFmpegDecoder(ffmpeg, probe)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()
	_, err = e.NextBatch(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid data found") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
}

func TestFFmpegDecoderCountFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	estimated := testsupport.FFprobeJSON(2, 1, 0, "0.2", "25/1")
	counted := `{"streams": [{"codec_type": "video", "width": 2, "height": 1, "nb_read_frames": "3"}]}`
	probe := testsupport.StubBinary(t, dir, "ffprobe",
		"case \"$*\" in\n*-count_frames*) cat <<'JSON'\n"+counted+"\nJSON\n;;\n*) cat <<'JSON'\n"+estimated+"\nJSON\n;;\nesac\n")

	tests := []struct {
		name        string
		countFrames bool
		want        VideoInfo
	}{
		{"estimated from duration", false, VideoInfo{Width: 2, Height: 1, FrameCount: 5}},
		{"counted exactly", true, VideoInfo{Width: 2, Height: 1, FrameCount: 3, ExactCount: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewFFmpegDecoder("ffmpeg", probe)
			dec.CountFrames = tt.countFrames
			info, err := dec.Probe(context.Background(), "clip.mkv")
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			if info != tt.want {
				t.Fatalf("info = %+v, want %+v", info, tt.want)
			}
		})
	}
}

func TestFFmpegDecoderProbeFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	probe := testsupport.StubBinary(t, dir, "ffprobe", "echo 'No such file' >&2\nexit 1\n")

	_, err := Open(context.Background(), "missing.mp4", []int{0}, Options{Decoder: NewFFmpegDecoder("ffmpeg", probe)})
	if !errors.Is(err, ErrVideoOpen) {
		t.Fatalf("expected ErrVideoOpen, got %v", err)
	}
}
