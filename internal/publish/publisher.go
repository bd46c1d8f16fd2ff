package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"labelreel/internal/logging"
)

// ArchiveFileName is the object name of the uploaded dataset archive.
const ArchiveFileName = "dataset.zip"

const defaultUploadConcurrency = 4

// Options controls a Publish.
type Options struct {
	RunID  string
	Format string
	Prefix string
	// Archive uploads one zstd ZIP instead of every file.
	Archive bool
	// Exclude names top-level directories left out of the upload.
	Exclude     []string
	Concurrency int
	Now         func() time.Time
}

// Result reports what was uploaded.
type Result struct {
	// Location is the URI of the run's upload root.
	Location string `json:"location"`
	Objects  int    `json:"objects"`
	Bytes    int64  `json:"bytes"`
	Files    int    `json:"files"`
}

// Publisher uploads datasets through an Uploader.
type Publisher struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewPublisher constructs a publisher.
func NewPublisher(uploader Uploader, logger *slog.Logger) *Publisher {
	return &Publisher{uploader: uploader, logger: logging.NewComponentLogger(logger, "publish")}
}

// Publish uploads the dataset in dir with a manifest under
// <prefix>/<run-id>/.
func (p *Publisher) Publish(ctx context.Context, dir string, opts Options) (Result, error) {
	var result Result
	if strings.TrimSpace(opts.RunID) == "" {
		return result, errors.New("publish: run id is required")
	}
	if p.uploader == nil {
		return result, errors.New("publish: uploader is nil")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	staging, err := os.MkdirTemp("", "labelreel-publish-*")
	if err != nil {
		return result, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest, err := BuildManifest(dir, opts.RunID, opts.Format, now(), opts.Exclude...)
	if err != nil {
		return result, err
	}
	if len(manifest.Files) == 0 {
		return result, fmt.Errorf("publish: no dataset files in %s", dir)
	}
	result.Files = len(manifest.Files)
	manifestPath := filepath.Join(staging, ManifestFileName)
	if err := manifest.Write(manifestPath); err != nil {
		return result, err
	}

	uploads := make(map[string]string)
	if opts.Archive {
		archivePath := filepath.Join(staging, ArchiveFileName)
		stats, err := Archive(ctx, dir, archivePath, opts.Exclude...)
		if err != nil {
			return result, err
		}
		p.logger.Info("dataset archived",
			logging.Int("files", stats.Files),
			logging.String("uncompressed", humanize.Bytes(uint64(stats.Bytes))),
			logging.String("archive", humanize.Bytes(uint64(stats.Size))),
		)
		uploads[ObjectKey(opts.Prefix, opts.RunID, ArchiveFileName)] = archivePath
	} else {
		for _, entry := range manifest.Files {
			uploads[ObjectKey(opts.Prefix, opts.RunID, entry.Path)] = filepath.Join(dir, filepath.FromSlash(entry.Path))
		}
	}
	uploads[ObjectKey(opts.Prefix, opts.RunID, ManifestFileName)] = manifestPath

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultUploadConcurrency
	}
	var uploaded atomic.Int64
	var objects atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for key, local := range uploads {
		g.Go(func() error {
			n, err := UploadFile(gctx, p.uploader, local, key)
			if err != nil {
				return err
			}
			uploaded.Add(n)
			objects.Add(1)
			p.logger.Debug("object uploaded",
				logging.String("key", key),
				logging.String("size", humanize.Bytes(uint64(n))),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	result.Objects = int(objects.Load())
	result.Bytes = uploaded.Load()
	result.Location = p.uploader.Location(ObjectKey(opts.Prefix, opts.RunID, "")) + "/"
	p.logger.Info("dataset published",
		logging.String("location", result.Location),
		logging.Int("objects", result.Objects),
		logging.String("size", humanize.Bytes(uint64(result.Bytes))),
	)
	return result, nil
}
