package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"labelreel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_STATE_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "labelreel", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	wantState := filepath.Join(tempHome, ".local", "state", "labelreel")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.AnnotationsFile) || !strings.HasSuffix(cfg.Paths.AnnotationsFile, filepath.Join("json_file", "annotations.json")) {
		t.Fatalf("unexpected annotations path: %q", cfg.Paths.AnnotationsFile)
	}
	if cfg.Conversion.Format != "yolo" {
		t.Fatalf("unexpected default format: %q", cfg.Conversion.Format)
	}
	if cfg.Extraction.BatchSize != 500 {
		t.Fatalf("unexpected default batch size: %d", cfg.Extraction.BatchSize)
	}
	if cfg.Conversion.FrameBase != 1 {
		t.Fatalf("unexpected default frame base: %d", cfg.Conversion.FrameBase)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("output dir should not be created by EnsureDirectories, stat err=%v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labelreel.toml")

	custom := config.Default()
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Conversion.Format = "COCO"
	custom.Conversion.ImageFormat = "JPEG"
	custom.Conversion.Classes = []config.Class{{Name: "person", ID: 0}, {Name: " car ", ID: 1}}
	custom.Extraction.BatchSize = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Conversion.Format != "coco" {
		t.Fatalf("expected format lowercased, got %q", cfg.Conversion.Format)
	}
	if cfg.Conversion.ImageFormat != "jpg" {
		t.Fatalf("expected jpeg alias folded to jpg, got %q", cfg.Conversion.ImageFormat)
	}
	if len(cfg.Conversion.Classes) != 2 || cfg.Conversion.Classes[1].Name != "car" {
		t.Fatalf("unexpected classes: %#v", cfg.Conversion.Classes)
	}
	if cfg.Extraction.BatchSize != 2 {
		t.Fatalf("unexpected batch size: %d", cfg.Extraction.BatchSize)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempDir, "out") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
}

func TestLabelStudioEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LABEL_STUDIO_URL", "https://ls.example.com/")
	t.Setenv("LABEL_STUDIO_API_KEY", " secret ")
	t.Setenv("PROJECT_ID", "42")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LabelStudio.URL != "https://ls.example.com" {
		t.Fatalf("unexpected url: %q", cfg.LabelStudio.URL)
	}
	if cfg.LabelStudio.APIKey != "secret" {
		t.Fatalf("unexpected api key: %q", cfg.LabelStudio.APIKey)
	}
	if cfg.LabelStudio.ProjectID != 42 {
		t.Fatalf("unexpected project id: %d", cfg.LabelStudio.ProjectID)
	}
}

func TestLabelStudioProjectIDMustBeNumeric(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LABEL_STUDIO_PROJECT_ID", "abc")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for non-numeric project id")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"format", func(c *config.Config) { c.Conversion.Format = "voc" }, "conversion.format"},
		{"image format", func(c *config.Config) { c.Conversion.ImageFormat = "gif" }, "conversion.image_format"},
		{"jpeg quality", func(c *config.Config) { c.Conversion.JPEGQuality = 101 }, "conversion.jpeg_quality"},
		{"frame base", func(c *config.Config) { c.Conversion.FrameBase = -1 }, "conversion.frame_base"},
		{"duplicate class name", func(c *config.Config) {
			c.Conversion.Classes = []config.Class{{Name: "car", ID: 0}, {Name: "car", ID: 1}}
		}, "defined twice"},
		{"duplicate class id", func(c *config.Config) {
			c.Conversion.Classes = []config.Class{{Name: "car", ID: 0}, {Name: "person", ID: 0}}
		}, "shared by"},
		{"negative class id", func(c *config.Config) {
			c.Conversion.Classes = []config.Class{{Name: "car", ID: -1}}
		}, "non-negative"},
		{"batch size", func(c *config.Config) { c.Extraction.BatchSize = 0 }, "extraction.batch_size"},
		{"workers", func(c *config.Config) { c.Extraction.Workers = 0 }, "extraction.workers"},
		{"threshold", func(c *config.Config) { c.Resolver.FuzzyThreshold = 1.5 }, "resolver.fuzzy_threshold"},
		{"substring", func(c *config.Config) { c.Resolver.MinSubstringLength = 0 }, "resolver.min_substring_length"},
		{"project", func(c *config.Config) { c.LabelStudio.ProjectID = 0 }, "label_studio.project_id"},
		{"url", func(c *config.Config) { c.LabelStudio.URL = "ftp://x" }, "label_studio.url"},
		{"bucket", func(c *config.Config) { c.Publish.Enabled = true }, "publish.bucket"},
		{"preview", func(c *config.Config) { c.Preview.LineWidth = 0 }, "preview.line_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("unexpected error: got %q want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv("HOME", t.TempDir())
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Extraction.BatchSize != 500 || cfg.Conversion.Format != "yolo" {
		t.Fatalf("sample diverges from defaults: %#v", cfg)
	}
}

func TestNormalizeImageFormat(t *testing.T) {
	tests := map[string]string{
		"":      "jpg",
		".PNG":  "png",
		"jpeg":  "jpg",
		"tif":   "tiff",
		" bmp ": "bmp",
	}
	for in, want := range tests {
		if got := config.NormalizeImageFormat(in); got != want {
			t.Errorf("NormalizeImageFormat(%q) = %q, want %q", in, got, want)
		}
	}
}
