package videoresolve

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolveStrategies(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		available  []string
		wantPath   string
		wantStrat  Strategy
		wantConfid Confidence
	}{
		{
			name:       "exact basename",
			ref:        "/data/upload/5/video1.mp4",
			available:  []string{"/videos/video2.mp4", "/videos/video1.mp4"},
			wantPath:   "/videos/video1.mp4",
			wantStrat:  StrategyExact,
			wantConfid: ConfidenceHigh,
		},
		{
			name:       "upload prefix stripped",
			ref:        "/data/upload/5/3b780495-video1.mp4",
			available:  []string{"/videos/video1.mp4", "/videos/video2.mp4"},
			wantPath:   "/videos/video1.mp4",
			wantStrat:  StrategySuffix,
			wantConfid: ConfidenceHigh,
		},
		{
			name:       "exact wins over suffix",
			ref:        "/data/upload/5/3b780495-video1.mp4",
			available:  []string{"/videos/video1.mp4", "/videos/3b780495-video1.mp4"},
			wantPath:   "/videos/3b780495-video1.mp4",
			wantStrat:  StrategyExact,
			wantConfid: ConfidenceHigh,
		},
		{
			name:       "case differences fall to fuzzy",
			ref:        "/data/upload/1/abcd1234-Video_One.MP4",
			available:  []string{"/videos/other.mp4", "/videos/video_one.mp4"},
			wantPath:   "/videos/video_one.mp4",
			wantStrat:  StrategyFuzzy,
			wantConfid: ConfidenceMedium,
		},
		{
			name:       "substring containment",
			ref:        "/data/upload/4/3b780495-ride_bike.mp4",
			available:  []string{"/videos/20250514_ride_bike_in_circles_60sec.mp4"},
			wantPath:   "/videos/20250514_ride_bike_in_circles_60sec.mp4",
			wantStrat:  StrategySubstring,
			wantConfid: ConfidenceLow,
		},
		{
			name:       "local storage reference",
			ref:        "/data/local-files/?d=videos/clip.mp4",
			available:  []string{"/srv/media/clip.mp4"},
			wantPath:   "/srv/media/clip.mp4",
			wantStrat:  StrategyExact,
			wantConfid: ConfidenceHigh,
		},
		{
			name:       "duplicate basenames pick first path",
			ref:        "clip.mp4",
			available:  []string{"/v/b/clip.mp4", "/v/a/clip.mp4"},
			wantPath:   "/v/a/clip.mp4",
			wantStrat:  StrategyExact,
			wantConfid: ConfidenceHigh,
		},
	}

	resolver := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(tt.ref, tt.available)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if got.Path != tt.wantPath || got.Strategy != tt.wantStrat || got.Confidence != tt.wantConfid {
				t.Fatalf("got %+v, want path=%s strategy=%s confidence=%s", got, tt.wantPath, tt.wantStrat, tt.wantConfid)
			}
			if got.Ref != tt.ref {
				t.Fatalf("expected ref %q to be preserved, got %q", tt.ref, got.Ref)
			}
		})
	}
}

func TestResolveFuzzyTiePicksFirstPath(t *testing.T) {
	resolver := New(Options{})
	got, err := resolver.Resolve("CLIP.mp4", []string{"/v/b/clip.mp4", "/v/a/clip.mkv"})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got.Strategy != StrategyFuzzy || got.Path != "/v/a/clip.mkv" {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestResolveNoMatch(t *testing.T) {
	resolver := New(Options{})
	cases := map[string][]string{
		"unrelated.mp4": {"/videos/video1.mp4"},
		"abc.mp4":       {"/videos/abcdef.mp4"},
		"":              {"/videos/video1.mp4"},
		"video1.mp4":    nil,
	}
	for ref, available := range cases {
		_, err := resolver.Resolve(ref, available)
		if !errors.Is(err, ErrNoMatchingVideo) {
			t.Fatalf("Resolve(%q) error = %v, want ErrNoMatchingVideo", ref, err)
		}
	}
}

func TestResolveThresholdIsConfigurable(t *testing.T) {
	strict := New(Options{FuzzyThreshold: 0.99, MinSubstringLength: 50})
	if _, err := strict.Resolve("video_on.mp4", []string{"/v/video_one.mp4"}); !errors.Is(err, ErrNoMatchingVideo) {
		t.Fatalf("expected strict resolver to reject near match, got %v", err)
	}
	loose := New(Options{FuzzyThreshold: 0.5})
	got, err := loose.Resolve("video_on.mp4", []string{"/v/video_one.mp4"})
	if err != nil || got.Strategy != StrategyFuzzy {
		t.Fatalf("expected fuzzy match, got %+v err=%v", got, err)
	}
}

func TestRefBaseName(t *testing.T) {
	tests := map[string]string{
		"/data/upload/5/3b780495-video1.mp4":          "3b780495-video1.mp4",
		"http://localhost:8080/data/upload/5/a-b.mp4": "a-b.mp4",
		"/data/local-files/?d=videos%2Fclip.mp4":      "clip.mp4",
		"clip.mp4":                                    "clip.mp4",
		"  ":                                          "",
	}
	for input, want := range tests {
		if got := RefBaseName(input); got != want {
			t.Fatalf("RefBaseName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestScanVideos(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"a.mp4",
		"nested/b.MOV",
		"nested/deeper/c.mkv",
		"notes.txt",
		"nested/d.jpg",
	}
	for _, name := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "folder.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := ScanVideos(root)
	if err != nil {
		t.Fatalf("ScanVideos: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.mp4"),
		filepath.Join(root, "nested/b.MOV"),
		filepath.Join(root, "nested/deeper/c.mkv"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ScanVideos = %v, want %v", got, want)
	}

	if _, err := ScanVideos(filepath.Join(root, "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
