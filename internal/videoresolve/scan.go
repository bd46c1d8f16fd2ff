package videoresolve

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".avi": {},
	".mov": {},
	".mkv": {},
	".wmv": {},
	".flv": {},
}

// IsVideo reports whether path has one of the accepted video extensions.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ScanVideos walks dir recursively and returns every video file, sorted.
func ScanVideos(dir string) ([]string, error) {
	var videos []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if IsVideo(path) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan video directory %s: %w", dir, err)
	}
	slices.Sort(videos)
	return videos, nil
}
