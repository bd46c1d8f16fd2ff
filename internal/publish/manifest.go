package publish

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"labelreel/internal/fileutil"
)

// ManifestFileName is the object name of the uploaded manifest.
const ManifestFileName = "manifest.json"

// ManifestEntry describes one dataset file.
type ManifestEntry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest lists the files of a published dataset.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Format    string          `json:"format,omitempty"`
	CreatedAt string          `json:"created_at"`
	Files     []ManifestEntry `json:"files"`
}

// BuildManifest hashes every dataset file under dir.
func BuildManifest(dir, runID, format string, now time.Time, exclude ...string) (Manifest, error) {
	files, err := DatasetFiles(dir, exclude...)
	if err != nil {
		return Manifest{}, err
	}
	manifest := Manifest{
		RunID:     runID,
		Format:    format,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Files:     make([]ManifestEntry, 0, len(files)),
	}
	for _, rel := range files {
		sum, size, err := fileutil.SHA256File(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return Manifest{}, fmt.Errorf("manifest: %w", err)
		}
		manifest.Files = append(manifest.Files, ManifestEntry{Path: rel, Size: size, SHA256: sum})
	}
	return manifest, nil
}

// TotalBytes sums the sizes of the listed files.
func (m Manifest) TotalBytes() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// Write stores the manifest as indented JSON at path.
func (m Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
}
