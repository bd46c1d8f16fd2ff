package labelstudio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"labelreel/internal/services"
	"labelreel/internal/testsupport"
)

type fakeServer struct {
	t *testing.T

	mu          sync.Mutex
	exports     int
	interpolate bool
	downloads   []string
	tasks       []Task
	videos      map[string]string
	pagesServed int
}

func (f *fakeServer) handler(w http.ResponseWriter, r *http.Request) {
	if token := r.Header.Get("Authorization"); token != "Token key-123" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/projects/5/exports":
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			f.t.Errorf("decode export payload: %v", err)
		}
		f.interpolate, _ = payload["interpolate_key_frames"].(bool)
		f.exports++
		_, _ = fmt.Fprintf(w, `{"id": 42, "title": %q, "status": "completed"}`, payload["title"])
	case r.Method == http.MethodGet && r.URL.Path == "/api/projects/5/exports/42/download":
		if got := r.URL.Query().Get("exportType"); got != "JSON_MIN" {
			f.t.Errorf("exportType = %q", got)
		}
		_, _ = w.Write([]byte(`[{"id": 1, "video": "/data/upload/5/abc-clip.mp4", "box": []}]`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/projects/5/tasks":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		f.pagesServed++
		start := (page - 1) * size
		if start >= len(f.tasks) && page > 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		end := min(start+size, len(f.tasks))
		_ = json.NewEncoder(w).Encode(f.tasks[start:end])
	case strings.HasPrefix(r.URL.Path, "/data/upload/"):
		body, ok := f.videos[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.downloads = append(f.downloads, r.URL.Path)
		_, _ = w.Write([]byte(body))
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusTeapot)
	}
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fake := &fakeServer{t: t, videos: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)
	return fake, server
}

func videoTask(id int, ref string) Task {
	return Task{ID: id, Data: map[string]any{"video": ref}}
}

func TestFetchDownloadsExportAndVideos(t *testing.T) {
	fake, server := newFakeServer(t)
	fake.tasks = []Task{
		videoTask(1, "/data/upload/5/abc-clip.mp4"),
		videoTask(2, "/data/upload/5/missing.mp4"),
		{ID: 3, Data: map[string]any{"image": "x.png"}},
	}
	fake.videos["/data/upload/5/abc-clip.mp4"] = "video-bytes"

	cfg := testsupport.NewConfig(t, testsupport.WithLabelStudio(server.URL, 5))
	cfg.LabelStudio.APIKey = "key-123"
	client, err := NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	result, err := client.Fetch(context.Background(), FetchOptions{
		AnnotationsFile:      cfg.Paths.AnnotationsFile,
		VideoDir:             cfg.Paths.VideoDir,
		InterpolateKeyframes: true,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.ExportID != 42 || result.AnnotationsReused {
		t.Fatalf("unexpected export result: %+v", result)
	}
	if !fake.interpolate {
		t.Fatal("expected interpolate_key_frames=true")
	}
	data, err := os.ReadFile(cfg.Paths.AnnotationsFile)
	if err != nil {
		t.Fatalf("read annotations: %v", err)
	}
	if !strings.Contains(string(data), "abc-clip.mp4") {
		t.Fatalf("unexpected annotations content: %s", data)
	}

	videos := result.Videos
	if len(videos.Downloaded) != 1 || filepath.Base(videos.Downloaded[0]) != "abc-clip.mp4" {
		t.Fatalf("unexpected downloads: %+v", videos.Downloaded)
	}
	if len(videos.Failed) != 1 || videos.Failed[0].TaskID != 2 {
		t.Fatalf("unexpected failures: %+v", videos.Failed)
	}
	if !errors.Is(videos.Failed[0].Err, services.ErrNotFound) {
		t.Fatalf("failure error = %v, want ErrNotFound", videos.Failed[0].Err)
	}
	if len(videos.NoVideo) != 1 || videos.NoVideo[0] != 3 {
		t.Fatalf("unexpected no-video tasks: %v", videos.NoVideo)
	}
	if videos.Bytes != int64(len("video-bytes")) {
		t.Fatalf("bytes = %d", videos.Bytes)
	}
	content, err := os.ReadFile(filepath.Join(cfg.Paths.VideoDir, "abc-clip.mp4"))
	if err != nil || string(content) != "video-bytes" {
		t.Fatalf("unexpected video file: %q %v", content, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.VideoDir, "missing.mp4")); !os.IsNotExist(err) {
		t.Fatalf("failed download left a file behind: %v", err)
	}
}

func TestFetchReusesExistingFiles(t *testing.T) {
	fake, server := newFakeServer(t)
	fake.tasks = []Task{videoTask(1, "/data/upload/5/abc-clip.mp4")}
	fake.videos["/data/upload/5/abc-clip.mp4"] = "fresh"

	cfg := testsupport.NewConfig(t)
	testsupport.WriteText(t, cfg.Paths.AnnotationsFile, "[]")
	testsupport.WriteText(t, filepath.Join(cfg.Paths.VideoDir, "abc-clip.mp4"), "cached")

	client := New(server.URL, "key-123", 5, nil, nil)
	result, err := client.Fetch(context.Background(), FetchOptions{
		AnnotationsFile: cfg.Paths.AnnotationsFile,
		VideoDir:        cfg.Paths.VideoDir,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.AnnotationsReused || fake.exports != 0 {
		t.Fatalf("expected export to be skipped, exports=%d", fake.exports)
	}
	if len(result.Videos.Existing) != 1 || len(result.Videos.Downloaded) != 0 || len(fake.downloads) != 0 {
		t.Fatalf("expected cached video reuse: %+v", result.Videos)
	}
	content, _ := os.ReadFile(filepath.Join(cfg.Paths.VideoDir, "abc-clip.mp4"))
	if string(content) != "cached" {
		t.Fatalf("cached video overwritten: %q", content)
	}
}

func TestListTasksPaginates(t *testing.T) {
	fake, server := newFakeServer(t)
	for i := 1; i <= 5; i++ {
		fake.tasks = append(fake.tasks, videoTask(i, fmt.Sprintf("/data/upload/5/v%d.mp4", i)))
	}
	client := New(server.URL, "key-123", 5, nil, nil)
	client.pageSize = 2

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 5 || tasks[4].ID != 5 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if fake.pagesServed != 3 {
		t.Fatalf("pages served = %d, want 3", fake.pagesServed)
	}
}

func TestListTasksStopsOnNotFoundPage(t *testing.T) {
	fake, server := newFakeServer(t)
	fake.tasks = []Task{videoTask(1, "/a.mp4"), videoTask(2, "/b.mp4")}
	client := New(server.URL, "key-123", 5, nil, nil)
	client.pageSize = 2

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 2 || fake.pagesServed != 2 {
		t.Fatalf("tasks=%d pages=%d", len(tasks), fake.pagesServed)
	}
}

func TestListTasksWrappedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total": 1, "tasks": [{"id": 9, "data": {"video": "/v.mp4"}}]}`))
	}))
	defer server.Close()

	tasks, err := New(server.URL, "k", 1, nil, nil).ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].VideoURL() != "/v.mp4" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestUnauthorizedIsConfigurationError(t *testing.T) {
	_, server := newFakeServer(t)
	client := New(server.URL, "wrong", 5, nil, nil)
	_, err := client.CreateExport(context.Background(), ExportTitle, true)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid token") {
		t.Fatalf("expected server detail in error: %v", err)
	}
}

func TestNewFromConfigRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LabelStudio.APIKey = ""
	if _, err := NewFromConfig(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestVideoFileName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"/data/upload/5/46763684-20250514_ride_bike.mp4", "46763684-20250514_ride_bike.mp4"},
		{"http://host/data/upload/5/clip%20one.mov?token=x", "clip one.mov"},
		{"/data/local-files/?d=videos/walk.mp4", "walk.mp4"},
		{"/data/upload/5/notes.txt", "task_7.mp4"},
		{"/", "task_7.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := VideoFileName(videoTask(7, tt.ref)); got != tt.want {
				t.Fatalf("VideoFileName(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolveURL(t *testing.T) {
	client := New("http://ls.local:8080/", "k", 1, nil, nil)
	if got := client.ResolveURL("/data/upload/1/a.mp4"); got != "http://ls.local:8080/data/upload/1/a.mp4" {
		t.Fatalf("relative: %q", got)
	}
	if got := client.ResolveURL("https://cdn/a.mp4"); got != "https://cdn/a.mp4" {
		t.Fatalf("absolute: %q", got)
	}
}
