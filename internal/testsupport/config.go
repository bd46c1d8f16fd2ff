package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"labelreel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.AnnotationsFile = filepath.Join(base, "json_file", "annotations.json")
	cfgVal.Paths.VideoDir = filepath.Join(base, "video_files")
	cfgVal.Paths.OutputDir = filepath.Join(base, "dataset")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Conversion.Classes = []config.Class{{Name: "person", ID: 0}, {Name: "car", ID: 1}}
	cfgVal.LabelStudio.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormat sets the dataset format on the test config.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.Format = format
	}
}

// WithClasses replaces the class mapping on the test config.
func WithClasses(classes ...config.Class) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.Classes = classes
	}
}

// WithLabelStudio points the test config at a Label Studio server.
func WithLabelStudio(url string, projectID int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LabelStudio.URL = url
		b.cfg.LabelStudio.ProjectID = projectID
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			StubBinary(b.t, filepath.Join(b.baseDir, "bin"), name, "exit 0\n")
		}
	}
}

// StubBinary writes a /bin/sh script named name into dir and prepends dir to
// PATH for the duration of the test. It returns the script path.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
