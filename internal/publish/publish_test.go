package publish

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"labelreel/internal/services"
	"labelreel/internal/testsupport"
)

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryUploader) Upload(_ context.Context, key string, body io.ReadSeeker, _ int64, contentType string) error {
	if m.fail != nil {
		return m.fail
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryUploader) Location(key string) string { return "mem://" + key }

func (m *memoryUploader) keys() []string {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "dataset")
	testsupport.WriteText(t, filepath.Join(dir, "images", "frame_a_000001.jpg"), "jpeg-bytes")
	testsupport.WriteText(t, filepath.Join(dir, "labels", "frame_a_000001.txt"), "0 0.5 0.5 0.1 0.1")
	testsupport.WriteText(t, filepath.Join(dir, "classes.txt"), "person\n")
	testsupport.WriteText(t, filepath.Join(dir, "data.yaml"), "nc: 1\n")
	testsupport.WriteText(t, filepath.Join(dir, ".labelreel.lock"), "")
	testsupport.WriteText(t, filepath.Join(dir, "preview", "frame_a_000001.jpg"), "preview")
	return dir
}

func TestDatasetFilesSkipsHiddenAndExcluded(t *testing.T) {
	dir := writeDataset(t)
	files, err := DatasetFiles(dir, "preview")
	if err != nil {
		t.Fatalf("DatasetFiles: %v", err)
	}
	want := []string{"classes.txt", "data.yaml", "images/frame_a_000001.jpg", "labels/frame_a_000001.txt"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files = %v, want %v", files, want)
		}
	}
}

func TestArchiveUsesZstdAndStoresImages(t *testing.T) {
	dir := writeDataset(t)
	dst := filepath.Join(t.TempDir(), "out.zip")

	stats, err := Archive(context.Background(), dir, dst, "preview")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if stats.Files != 4 || stats.Size == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	zr, err := zip.OpenReader(dst)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	methods := map[string]uint16{}
	for _, f := range zr.File {
		methods[f.Name] = f.Method
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		if f.Name == "labels/frame_a_000001.txt" && string(data) != "0 0.5 0.5 0.1 0.1" {
			t.Fatalf("label content = %q", data)
		}
	}
	if methods["images/frame_a_000001.jpg"] != zip.Store {
		t.Fatalf("jpg method = %d, want store", methods["images/frame_a_000001.jpg"])
	}
	if methods["labels/frame_a_000001.txt"] != ZipMethodZstd {
		t.Fatalf("txt method = %d, want zstd", methods["labels/frame_a_000001.txt"])
	}
	if _, ok := methods[".labelreel.lock"]; ok {
		t.Fatal("lock file should not be archived")
	}
}

func TestArchiveInsideDatasetSkipsItself(t *testing.T) {
	dir := writeDataset(t)
	dst := filepath.Join(dir, "bundle.zip")
	if _, err := Archive(context.Background(), dir, dst, "preview"); err != nil {
		t.Fatalf("first archive: %v", err)
	}
	stats, err := Archive(context.Background(), dir, dst, "preview")
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if stats.Files != 4 {
		t.Fatalf("archive included itself: %+v", stats)
	}
}

func TestBuildManifest(t *testing.T) {
	dir := writeDataset(t)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	manifest, err := BuildManifest(dir, "run-1", "yolo", now, "preview")
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	if manifest.CreatedAt != "2026-03-04T05:06:07Z" || len(manifest.Files) != 4 {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	sum := sha256.Sum256([]byte("person\n"))
	first := manifest.Files[0]
	if first.Path != "classes.txt" || first.Size != 7 || first.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if manifest.TotalBytes() <= 0 {
		t.Fatal("expected positive total bytes")
	}
}

func TestPublishArchive(t *testing.T) {
	dir := writeDataset(t)
	uploader := newMemoryUploader()
	publisher := NewPublisher(uploader, nil)

	result, err := publisher.Publish(context.Background(), dir, Options{
		RunID: "run-1", Format: "yolo", Prefix: "datasets", Archive: true, Exclude: []string{"preview"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	keys := uploader.keys()
	want := []string{"datasets/run-1/dataset.zip", "datasets/run-1/manifest.json"}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if result.Objects != 2 || result.Files != 4 || result.Location != "mem://datasets/run-1/" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if uploader.types["datasets/run-1/manifest.json"] != "application/json" {
		t.Fatalf("manifest content type = %q", uploader.types["datasets/run-1/manifest.json"])
	}

	var manifest Manifest
	if err := json.Unmarshal(uploader.objects["datasets/run-1/manifest.json"], &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.RunID != "run-1" || len(manifest.Files) != 4 {
		t.Fatalf("unexpected uploaded manifest: %+v", manifest)
	}
}

func TestPublishFiles(t *testing.T) {
	dir := writeDataset(t)
	uploader := newMemoryUploader()
	result, err := NewPublisher(uploader, nil).Publish(context.Background(), dir, Options{
		RunID: "run-2", Exclude: []string{"preview"}, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Objects != 5 {
		t.Fatalf("objects = %d, want 5 (4 files + manifest)", result.Objects)
	}
	if string(uploader.objects["run-2/labels/frame_a_000001.txt"]) != "0 0.5 0.5 0.1 0.1" {
		t.Fatalf("unexpected label object: %v", uploader.keys())
	}
	if uploader.types["run-2/classes.txt"] != "text/plain; charset=utf-8" {
		t.Fatalf("classes content type = %q", uploader.types["run-2/classes.txt"])
	}
}

func TestPublishPropagatesUploadError(t *testing.T) {
	dir := writeDataset(t)
	uploader := newMemoryUploader()
	uploader.fail = errors.New("denied")
	if _, err := NewPublisher(uploader, nil).Publish(context.Background(), dir, Options{RunID: "r", Archive: true}); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestPublishRequiresRunID(t *testing.T) {
	if _, err := NewPublisher(newMemoryUploader(), nil).Publish(context.Background(), t.TempDir(), Options{}); err == nil {
		t.Fatal("expected error without run id")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploaderPutObject(t *testing.T) {
	fake := &fakeS3{}
	uploader := NewS3UploaderWithClient(fake, "bucket")
	dir := writeDataset(t)

	n, err := UploadFile(context.Background(), uploader, filepath.Join(dir, "data.yaml"), "p/r/data.yaml")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if n != int64(len("nc: 1\n")) || string(fake.body) != "nc: 1\n" {
		t.Fatalf("unexpected upload: n=%d body=%q", n, fake.body)
	}
	if *fake.input.Bucket != "bucket" || *fake.input.Key != "p/r/data.yaml" || *fake.input.ContentType != "application/yaml" {
		t.Fatalf("unexpected input: %+v", fake.input)
	}
	if got := uploader.Location("p/r/data.yaml"); got != "s3://bucket/p/r/data.yaml" {
		t.Fatalf("Location = %q", got)
	}

	fake.err = errors.New("access denied")
	if _, err := UploadFile(context.Background(), uploader, filepath.Join(dir, "data.yaml"), "k"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, run, name, want string
	}{
		{"datasets", "r1", "dataset.zip", "datasets/r1/dataset.zip"},
		{"/a/b/", "r1", "images/x.jpg", "a/b/r1/images/x.jpg"},
		{"", "r1", "manifest.json", "r1/manifest.json"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.run, tt.name); got != tt.want {
			t.Fatalf("ObjectKey(%q,%q,%q) = %q, want %q", tt.prefix, tt.run, tt.name, got, tt.want)
		}
	}
}
