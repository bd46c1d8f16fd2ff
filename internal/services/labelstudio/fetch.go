package labelstudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"labelreel/internal/fileutil"
	"labelreel/internal/logging"
	"labelreel/internal/videoresolve"
)

// ExportTitle is the title given to export snapshots created by fetch.
const ExportTitle = "Export with Interpolated Keyframes"

// DownloadFailure records a video that could not be fetched.
type DownloadFailure struct {
	TaskID int
	URL    string
	Err    error
}

// VideoDownloads summarizes a video download pass.
type VideoDownloads struct {
	Downloaded []string
	Existing   []string
	NoVideo    []int
	Failed     []DownloadFailure
	Bytes      int64
}

// Files lists every local video the pass produced or found.
func (d VideoDownloads) Files() []string {
	files := make([]string, 0, len(d.Downloaded)+len(d.Existing))
	files = append(files, d.Downloaded...)
	files = append(files, d.Existing...)
	return files
}

// FetchOptions controls a Fetch.
type FetchOptions struct {
	AnnotationsFile      string
	VideoDir             string
	InterpolateKeyframes bool
	// Force re-exports annotations even when the file exists.
	Force bool
	// SkipVideos downloads only the annotation export.
	SkipVideos bool
}

// FetchResult reports what a Fetch did.
type FetchResult struct {
	AnnotationsFile   string
	ExportID          int
	AnnotationsReused bool
	Videos            VideoDownloads
}

// Fetch downloads the annotation export and then every task video. An
// existing annotations file is reused unless opts.Force is set.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions) (FetchResult, error) {
	result := FetchResult{AnnotationsFile: opts.AnnotationsFile}
	if opts.AnnotationsFile == "" {
		return result, errors.New("fetch: annotations file path is required")
	}

	_, statErr := os.Stat(opts.AnnotationsFile)
	switch {
	case statErr == nil && !opts.Force:
		result.AnnotationsReused = true
		c.logger.Info("annotations file already exists, skipping export",
			logging.String("path", opts.AnnotationsFile),
		)
	case statErr != nil && !errors.Is(statErr, os.ErrNotExist):
		return result, fmt.Errorf("stat annotations file: %w", statErr)
	default:
		export, err := c.CreateExport(ctx, ExportTitle, opts.InterpolateKeyframes)
		if err != nil {
			return result, err
		}
		result.ExportID = export.ID
		if err := os.MkdirAll(filepath.Dir(opts.AnnotationsFile), 0o755); err != nil {
			return result, fmt.Errorf("create annotations directory: %w", err)
		}
		var written int64
		err = fileutil.WriteAtomic(opts.AnnotationsFile, 0o644, func(w io.Writer) error {
			n, err := c.DownloadExport(ctx, export.ID, w)
			written = n
			return err
		})
		if err != nil {
			return result, fmt.Errorf("save annotations export: %w", err)
		}
		c.logger.Info("annotations downloaded",
			logging.String("path", opts.AnnotationsFile),
			logging.String("size", humanize.Bytes(uint64(written))),
		)
	}

	if opts.SkipVideos {
		return result, nil
	}
	tasks, err := c.ListTasks(ctx)
	if err != nil {
		return result, err
	}
	downloads, err := c.DownloadVideos(ctx, tasks, opts.VideoDir)
	result.Videos = downloads
	return result, err
}

// DownloadVideos fetches the video of every task into dir. Per-video
// failures are collected in the result; only context cancellation and an
// unusable dir are returned as errors.
func (c *Client) DownloadVideos(ctx context.Context, tasks []Task, dir string) (VideoDownloads, error) {
	var result VideoDownloads
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("create video directory: %w", err)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ref := task.VideoURL()
		if ref == "" {
			result.NoVideo = append(result.NoVideo, task.ID)
			continue
		}
		target := filepath.Join(dir, VideoFileName(task))
		if _, err := os.Stat(target); err == nil {
			c.logger.Debug("video already exists, skipping", logging.String("path", target))
			result.Existing = append(result.Existing, target)
			continue
		}

		source := c.ResolveURL(ref)
		n, err := c.DownloadVideo(ctx, source, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			logging.WarnWithContext(c.logger, "video download failed", "video_download_failed",
				logging.Int("task_id", task.ID),
				logging.String("url", source),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the task's video URL and the API key permissions"),
				logging.String(logging.FieldImpact, "annotations referencing this video will be unresolved"),
			)
			result.Failed = append(result.Failed, DownloadFailure{TaskID: task.ID, URL: source, Err: err})
			continue
		}
		result.Bytes += n
		result.Downloaded = append(result.Downloaded, target)
		c.logger.Info("video downloaded",
			logging.String("path", target),
			logging.String("size", humanize.Bytes(uint64(n))),
		)
	}
	return result, nil
}

// DownloadVideo streams source into target through a temporary file.
func (c *Client) DownloadVideo(ctx context.Context, source, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, fmt.Errorf("build video request: %w", err)
	}
	resp, err := c.do(req, "download video")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var written int64
	err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		n, err := io.Copy(w, resp.Body)
		written = n
		return err
	})
	if err != nil {
		return written, fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return written, nil
}

// VideoFileName is the local name for a task's video: the file name of its
// URL, or task_<id>.mp4 when that is not a video file name.
func VideoFileName(task Task) string {
	name := videoresolve.RefBaseName(task.VideoURL())
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || strings.ContainsAny(name, `/\`) || !videoresolve.IsVideo(name) {
		return fmt.Sprintf("task_%d.mp4", task.ID)
	}
	return name
}
