package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FFprobeJSON returns an ffprobe -of json document describing one video
// stream. A frames value <= 0 omits nb_frames.
func FFprobeJSON(width, height, frames int, duration, rate string) string {
	nb := ""
	if frames > 0 {
		nb = fmt.Sprintf(`"nb_frames": "%d", `, frames)
	}
	return fmt.Sprintf(`{"streams": [{"index": 0, "codec_type": "video", "codec_name": "h264", `+
		`"width": %d, "height": %d, %s"avg_frame_rate": %q, "r_frame_rate": %q}], `+
		`"format": {"duration": %q, "nb_streams": 1}}`,
		width, height, nb, rate, rate, duration)
}
