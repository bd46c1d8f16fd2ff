package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"labelreel/internal/annotation"
	"labelreel/internal/dataset"
	"labelreel/internal/extract"
	"labelreel/internal/logging"
	"labelreel/internal/services"
	"labelreel/internal/videoresolve"
)

// Options configures a conversion run.
type Options struct {
	RunID       string
	Format      dataset.Format
	OutputDir   string
	Mapping     *annotation.ClassMapping
	FrameBase   int
	BatchSize   int
	Workers     int
	ImageFormat string
	JPEGQuality int
	Resolver    *videoresolve.Resolver
	Decoder     extract.Decoder
	Sequencer   *dataset.Sequencer
	Progress    Progress
	Logger      *slog.Logger
	Now         func() time.Time
}

// Run converts tasks into a dataset under opts.OutputDir using the local
// files in videos. A missing class mapping fails before the output directory
// is created.
func Run(ctx context.Context, tasks []annotation.Task, videos []string, opts Options) (Summary, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	summary := Summary{
		RunID:     opts.RunID,
		Format:    string(opts.Format),
		OutputDir: opts.OutputDir,
		Tasks:     len(tasks),
		StartedAt: opts.Now(),
	}
	if opts.Mapping == nil {
		return summary, services.Wrap(services.ErrConfiguration, "convert", "class mapping", "no classes configured", nil)
	}

	ctx = services.WithRunID(ctx, opts.RunID)
	base := logging.NewComponentLogger(opts.Logger, "pipeline")
	logger := logging.WithContext(ctx, base)

	work, err := BuildPlan(tasks, videos, opts.Mapping, PlanOptions{
		FrameBase: opts.FrameBase,
		Resolver:  opts.Resolver,
		Logger:    opts.Logger,
	})
	if err != nil {
		return summary, services.Wrap(services.ErrValidation, "project", "validate labels", "", err)
	}

	issues := newTally()
	for _, miss := range work.Unresolved {
		issues.add(IssueNoMatchingVideo, len(miss.TaskIDs))
		logging.WarnWithContext(logger, "no local video for annotation task", string(IssueNoMatchingVideo),
			logging.String("ref", miss.Ref),
			logging.Any("task_ids", miss.TaskIDs),
			logging.String(logging.FieldErrorHint, "check the video directory or run labelreel fetch"),
			logging.String(logging.FieldImpact, "task skipped"),
		)
	}
	for _, job := range work.Jobs {
		if job.Renamed() {
			logging.WarnWithContext(logger, "video name shared with another video", "duplicate_video_name",
				logging.String(logging.FieldVideo, job.Path),
				logging.String("output_name", job.Name),
				logging.String(logging.FieldImpact, "frames written under the renamed prefix"),
			)
		}
		if n := len(job.Plan.OutOfRange); n > 0 {
			issues.add(IssueFrameOutOfRange, n)
			issues.skip(n)
			logging.WarnWithContext(logger, "keyframes before first frame", string(IssueFrameOutOfRange),
				logging.String(logging.FieldVideo, filepath.Base(job.Path)),
				logging.Any("frames", job.Plan.OutOfRange),
				logging.Int("frame_base", opts.FrameBase),
				logging.String(logging.FieldErrorHint, "check conversion.frame_base"),
				logging.String(logging.FieldImpact, "frames skipped"),
			)
		}
	}
	summary.Videos = len(work.Jobs)

	lock, err := lockOutput(opts.OutputDir)
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "convert", "lock output", "", err)
	}
	defer func() { _ = lock.Unlock() }()

	emitter, err := dataset.New(opts.Format, opts.OutputDir, opts.Mapping, dataset.Options{
		ImageFormat: opts.ImageFormat,
		JPEGQuality: opts.JPEGQuality,
		Sequencer:   opts.Sequencer,
		Now:         opts.Now,
	})
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "emit", "create dataset", "", err)
	}

	logger.Info("conversion started",
		logging.String("format", string(opts.Format)),
		logging.String("output", opts.OutputDir),
		logging.Int("tasks", len(tasks)),
		logging.Int("videos", len(work.Jobs)),
		logging.Int("frames", work.Frames()),
		logging.Int("workers", opts.Workers),
	)

	opts.Progress.Start(work.Frames())
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Workers)
	for _, job := range work.Jobs {
		group.Go(func() error {
			return processVideo(gctx, job, emitter, issues, opts, base)
		})
	}
	runErr := group.Wait()
	opts.Progress.Finish()

	counts, skipped := issues.snapshot()
	summary.Issues = counts
	summary.FramesSkipped = skipped
	if runErr != nil {
		summary.FinishedAt = opts.Now()
		return summary, runErr
	}

	totals, err := emitter.Finalize()
	summary.FinishedAt = opts.Now()
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "emit", "finalize dataset", "", err)
	}
	summary.Images = totals.Images
	summary.Annotations = totals.Annotations

	logger.Info("conversion finished",
		logging.Int("images", summary.Images),
		logging.Int("annotations", summary.Annotations),
		logging.Int("frames_skipped", summary.FramesSkipped),
		logging.Int("issues", summary.IssueTotal()),
		logging.Duration("elapsed", summary.Duration()),
	)
	return summary, nil
}

// processVideo extracts and emits one video's frames. Only emitter failures
// and cancellation are returned; video-level problems are tallied.
func processVideo(ctx context.Context, job VideoJob, emitter dataset.Emitter, issues *tally, opts Options, base *slog.Logger) error {
	ctx = services.WithVideo(services.WithStage(ctx, "extract"), filepath.Base(job.Path))
	logger := logging.WithContext(ctx, base)
	plan := job.Plan
	if len(plan.Indices) == 0 {
		return nil
	}

	extraction, err := extract.Open(ctx, job.Path, plan.Indices, extract.Options{
		BatchSize:  opts.BatchSize,
		Decoder:    opts.Decoder,
		NumberBase: opts.FrameBase,
		Name:       job.Name,
		OnBatch: func(p extract.BatchProgress) {
			logger.Debug("batch extracted",
				logging.Int("batch", p.Batch),
				logging.Int("emitted", p.Emitted),
				logging.Int("total", p.Total),
			)
		},
	})
	if err != nil {
		issues.add(IssueVideoOpen, 1)
		issues.skip(len(plan.Indices))
		logging.WarnWithContext(logger, "video could not be opened", string(IssueVideoOpen),
			logging.Error(err),
			logging.Int("frames", len(plan.Indices)),
			logging.String(logging.FieldErrorHint, "verify the file plays with ffprobe"),
			logging.String(logging.FieldImpact, "all frames for this video skipped"),
		)
		return nil
	}
	defer extraction.Close()

	emitted := 0
	for {
		frames, err := extraction.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			missing := extraction.Total() - emitted
			issues.add(IssueDecode, 1)
			issues.skip(missing)
			logging.WarnWithContext(logger, "decode failed partway through video", string(IssueDecode),
				logging.Error(err),
				logging.Int("frames_emitted", emitted),
				logging.Int("frames_lost", missing),
				logging.String(logging.FieldImpact, "remaining frames for this video skipped"),
			)
			break
		}
		for _, frame := range frames {
			if err := emitFrame(frame, plan.Boxes[frame.Index], emitter, issues, logger); err != nil {
				return err
			}
		}
		emitted += len(frames)
		opts.Progress.Advance(job.Path, len(frames))
	}

	if skipped := extraction.Skipped(); len(skipped) > 0 {
		issues.add(IssueFrameOutOfRange, len(skipped))
		issues.skip(len(skipped))
		numbers := make([]int, len(skipped))
		for i, idx := range skipped {
			numbers[i] = idx + opts.FrameBase
		}
		logging.WarnWithContext(logger, "frames beyond end of video", string(IssueFrameOutOfRange),
			logging.Any("frames", numbers),
			logging.Int("frame_count", extraction.Info().FrameCount),
			logging.String(logging.FieldErrorHint, "check conversion.frame_base and that the video matches the annotated upload"),
			logging.String(logging.FieldImpact, "frames skipped"),
		)
	}
	return nil
}

func emitFrame(frame extract.Frame, boxes []annotation.Box, emitter dataset.Emitter, issues *tally, logger *slog.Logger) error {
	sink, err := emitter.BeginFrame(frame)
	if err != nil {
		return fmt.Errorf("emit frame %d of %s: %w", frame.Number, filepath.Base(frame.Video), err)
	}
	for _, box := range boxes {
		if err := sink.AddBox(box); err != nil {
			if !errors.Is(err, dataset.ErrInvalidBBox) {
				_ = sink.Close()
				return err
			}
			issues.add(IssueInvalidBBox, 1)
			logging.WarnWithContext(logger, "bounding box dropped", string(IssueInvalidBBox),
				logging.Int("frame", frame.Number),
				logging.Error(err),
				logging.String(logging.FieldImpact, "box dropped, frame kept"),
			)
		}
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("emit frame %d of %s: %w", frame.Number, filepath.Base(frame.Video), err)
	}
	return nil
}
