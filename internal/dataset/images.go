package dataset

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"labelreel/internal/fileutil"
)

const defaultJPEGQuality = 95

// imageEncoder writes frames in one configured format.
type imageEncoder struct {
	ext     string
	quality int
}

// NormalizeImageExt maps format aliases onto the extension used on disk.
func NormalizeImageExt(value string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")) {
	case "", "jpg", "jpeg":
		return "jpg", nil
	case "png":
		return "png", nil
	case "bmp":
		return "bmp", nil
	case "tif", "tiff":
		return "tiff", nil
	default:
		return "", fmt.Errorf("unsupported image format %q", value)
	}
}

func newImageEncoder(format string, quality int) (imageEncoder, error) {
	ext, err := NormalizeImageExt(format)
	if err != nil {
		return imageEncoder{}, err
	}
	if quality < 1 || quality > 100 {
		quality = defaultJPEGQuality
	}
	return imageEncoder{ext: ext, quality: quality}, nil
}

func (e imageEncoder) fileName(name string) string {
	return name + "." + e.ext
}

func (e imageEncoder) encode(w io.Writer, img image.Image) error {
	switch e.ext {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: e.quality})
	}
}

// writeImage encodes img into dir/name atomically and returns the file name.
func (e imageEncoder) writeImage(dir, name string, img image.Image) (string, error) {
	fileName := e.fileName(name)
	err := fileutil.WriteAtomic(filepath.Join(dir, fileName), 0o644, func(w io.Writer) error {
		buf := bufio.NewWriterSize(w, 256*1024)
		if err := e.encode(buf, img); err != nil {
			return err
		}
		return buf.Flush()
	})
	if err != nil {
		return "", fmt.Errorf("write image %s: %w", fileName, err)
	}
	return fileName, nil
}

// WriteImage encodes img to path using the format named by its extension.
func WriteImage(path string, img image.Image, quality int) error {
	ext := filepath.Ext(path)
	enc, err := newImageEncoder(ext, quality)
	if err != nil {
		return err
	}
	_, err = enc.writeImage(filepath.Dir(path), strings.TrimSuffix(filepath.Base(path), ext), img)
	return err
}
