package publish

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"

	"labelreel/internal/fileutil"
)

// ZipMethodZstd is the ZIP compression method id for Zstandard (APPNOTE 6.3.7).
const ZipMethodZstd uint16 = 93

func init() {
	zip.RegisterCompressor(ZipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
	})
	zip.RegisterDecompressor(ZipMethodZstd, func(r io.Reader) io.ReadCloser {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return errReadCloser{err: err}
		}
		return dec.IOReadCloser()
	})
}

type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }

// storedExtensions are already compressed and gain nothing from zstd.
var storedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".zip":  {},
}

// ArchiveStats describes a written archive.
type ArchiveStats struct {
	Files int
	// Bytes is the total uncompressed size of the archived files.
	Bytes int64
	// Size is the archive size on disk.
	Size int64
}

// DatasetFiles returns the dataset files under dir as slash-separated
// relative paths in lexical order. Hidden files and directories (the run
// lock, temporary files) and the top-level directories named in exclude are
// skipped.
func DatasetFiles(dir string, exclude ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if slices.Contains(exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dataset %s: %w", dir, err)
	}
	return files, nil
}

// Archive zips the dataset in dir into dst. Entry names are relative to dir.
func Archive(ctx context.Context, dir, dst string, exclude ...string) (ArchiveStats, error) {
	var stats ArchiveStats
	files, err := DatasetFiles(dir, exclude...)
	if err != nil {
		return stats, err
	}
	if absDst, err := filepath.Abs(dst); err == nil {
		if absDir, err := filepath.Abs(dir); err == nil {
			if rel, err := filepath.Rel(absDir, absDst); err == nil {
				files = slices.DeleteFunc(files, func(f string) bool { return f == filepath.ToSlash(rel) })
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return stats, fmt.Errorf("create archive directory: %w", err)
	}

	err = fileutil.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, rel := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := addEntry(zw, filepath.Join(dir, filepath.FromSlash(rel)), rel)
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zip writer: %w", err)
		}
		return nil
	})
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("write archive %s: %w", dst, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return stats, fmt.Errorf("stat archive: %w", err)
	}
	stats.Size = info.Size()
	return stats, nil
}

func addEntry(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, fmt.Errorf("zip header %s: %w", name, err)
	}
	header.Name = name
	header.Method = entryMethod(name)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, fmt.Errorf("create zip entry %s: %w", name, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return n, nil
}

func entryMethod(name string) uint16 {
	if _, ok := storedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return zip.Store
	}
	return ZipMethodZstd
}
