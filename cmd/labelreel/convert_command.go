package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"labelreel/internal/config"
	"labelreel/internal/dataset"
	"labelreel/internal/deps"
	"labelreel/internal/history"
	"labelreel/internal/logging"
	"labelreel/internal/pipeline"
	"labelreel/internal/preflight"
	"labelreel/internal/services"
)

type convertFlags struct {
	format          string
	classes         string
	outputDir       string
	annotationsFile string
	videoDir        string
	imageFormat     string
	batchSize       int
	workers         int
	frameBase       int
	countFrames     bool
	publish         bool
	jsonOutput      bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the annotation export into a YOLO or COCO dataset",
		Example: `  labelreel convert --format yolo --classes '{"person": 0, "car": 1}' --output dataset
  labelreel convert --format coco --classes @classes.json --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			summary, err := runConvert(cmd.Context(), cfg, flags.classes, logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			publishNow := cfg.Publish.Enabled
			if cmd.Flags().Changed("publish") {
				publishNow = flags.publish
			}
			var published *publishOutcome
			if publishNow {
				outcome, err := runPublish(cmd.Context(), cfg, logger, cfg.Paths.OutputDir, summary.RunID, summary.Format, cfg.Publish.Archive)
				if err != nil {
					return err
				}
				published = &outcome
			}

			if flags.jsonOutput {
				return writeJSON(cmd, convertJSON(summary, published))
			}
			out := cmd.OutOrStdout()
			renderSummary(out, summary, newPalette(out))
			if published != nil {
				fmt.Fprintf(out, "Published to %s\n", published.Location)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Dataset format: yolo or coco")
	cmd.Flags().StringVar(&flags.classes, "classes", "", `Class mapping JSON such as '{"person": 0}' (or @file)`)
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "Dataset output directory")
	cmd.Flags().StringVar(&flags.annotationsFile, "annotations", "", "Annotation export file (JSON_MIN)")
	cmd.Flags().StringVar(&flags.videoDir, "videos", "", "Directory holding the source videos")
	cmd.Flags().StringVar(&flags.imageFormat, "image-format", "", "Frame encoding: jpg, png, bmp or tiff")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Frames decoded per batch")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Videos processed concurrently")
	cmd.Flags().IntVar(&flags.frameBase, "frame-base", 0, "Number of the first frame in the export (1 for Label Studio)")
	cmd.Flags().BoolVar(&flags.countFrames, "count-frames", false, "Count frames exactly when the container does not record them (slow)")
	cmd.Flags().BoolVar(&flags.publish, "publish", false, "Upload the dataset after a successful run")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}

func (f convertFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if err := applyPathFlags(cfg, f.annotationsFile, f.videoDir, f.outputDir); err != nil {
		return err
	}
	if strings.TrimSpace(f.format) != "" {
		format, err := dataset.ParseFormat(f.format)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "convert", "--format", "", err)
		}
		cfg.Conversion.Format = string(format)
	}
	if strings.TrimSpace(f.imageFormat) != "" {
		if err := config.ValidateImageFormat(config.NormalizeImageFormat(f.imageFormat)); err != nil {
			return services.Wrap(services.ErrConfiguration, "convert", "--image-format", "", err)
		}
		cfg.Conversion.ImageFormat = config.NormalizeImageFormat(f.imageFormat)
	}
	if cmd.Flags().Changed("batch-size") {
		if f.batchSize <= 0 {
			return services.Wrap(services.ErrConfiguration, "convert", "--batch-size", "must be positive", nil)
		}
		cfg.Extraction.BatchSize = f.batchSize
	}
	if cmd.Flags().Changed("workers") {
		if f.workers <= 0 {
			return services.Wrap(services.ErrConfiguration, "convert", "--workers", "must be positive", nil)
		}
		cfg.Extraction.Workers = f.workers
	}
	if cmd.Flags().Changed("count-frames") {
		cfg.Extraction.CountFrames = f.countFrames
	}
	if cmd.Flags().Changed("frame-base") {
		if f.frameBase < 0 {
			return services.Wrap(services.ErrConfiguration, "convert", "--frame-base", "must be >= 0", nil)
		}
		cfg.Conversion.FrameBase = f.frameBase
	}
	return nil
}

// runConvert executes one conversion and records it in run history.
func runConvert(ctx context.Context, cfg *config.Config, classesFlag string, logger *slog.Logger, progressOut io.Writer) (pipeline.Summary, error) {
	format, err := dataset.ParseFormat(cfg.Conversion.Format)
	if err != nil {
		return pipeline.Summary{}, services.Wrap(services.ErrConfiguration, "convert", "format", "", err)
	}
	mapping, err := classMapping(cfg, classesFlag)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if missing := deps.Missing(preflight.CheckSystemDeps(ctx, cfg)); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
		}
		return pipeline.Summary{}, services.Wrap(services.ErrExternalTool, "convert", "preflight",
			"missing "+strings.Join(names, ", "), nil)
	}
	tasks, videos, err := loadInputs(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()

	runID := uuid.NewString()
	if err := store.Begin(ctx, runID, "convert", string(format), cfg.Paths.AnnotationsFile, cfg.Paths.OutputDir); err != nil {
		return pipeline.Summary{}, fmt.Errorf("record run: %w", err)
	}

	summary, runErr := pipeline.Run(ctx, tasks, videos, pipeline.Options{
		RunID:       runID,
		Format:      format,
		OutputDir:   cfg.Paths.OutputDir,
		Mapping:     mapping,
		FrameBase:   cfg.Conversion.FrameBase,
		BatchSize:   cfg.Extraction.BatchSize,
		Workers:     cfg.Extraction.Workers,
		ImageFormat: cfg.Conversion.ImageFormat,
		JPEGQuality: cfg.Conversion.JPEGQuality,
		Resolver:    newResolver(cfg, logger),
		Decoder:     newDecoder(cfg),
		Progress:    pipeline.NewProgress(progressOut, logger),
		Logger:      logger,
	})

	// History must record cancelled runs too.
	finishCtx := context.WithoutCancel(ctx)
	if err := store.Finish(finishCtx, runID, outcomeFromSummary(summary, runErr)); err != nil {
		logging.WarnWithContext(logger, "failed to record run outcome", "history_write_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from labelreel history"),
		)
	}
	if runErr != nil {
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed", runErr,
			logging.String(logging.FieldRunID, runID),
		)
	}
	return summary, runErr
}

func outcomeFromSummary(summary pipeline.Summary, err error) history.Outcome {
	issues := make(map[string]int, len(summary.Issues))
	for kind, count := range summary.Issues {
		issues[string(kind)] = count
	}
	return history.Outcome{
		Tasks:         summary.Tasks,
		Videos:        summary.Videos,
		Images:        summary.Images,
		Annotations:   summary.Annotations,
		FramesSkipped: summary.FramesSkipped,
		Issues:        issues,
		ErrorCategory: services.Category(err),
		Err:           err,
	}
}

type convertOutput struct {
	RunID         string         `json:"run_id"`
	Format        string         `json:"format"`
	OutputDir     string         `json:"output_dir"`
	Tasks         int            `json:"tasks"`
	Videos        int            `json:"videos"`
	Images        int            `json:"images"`
	Annotations   int            `json:"annotations"`
	FramesSkipped int            `json:"frames_skipped"`
	Issues        map[string]int `json:"issues"`
	DurationMS    int64          `json:"duration_ms"`
	PublishedTo   string         `json:"published_to,omitempty"`
}

func convertJSON(summary pipeline.Summary, published *publishOutcome) convertOutput {
	out := convertOutput{
		RunID:         summary.RunID,
		Format:        summary.Format,
		OutputDir:     summary.OutputDir,
		Tasks:         summary.Tasks,
		Videos:        summary.Videos,
		Images:        summary.Images,
		Annotations:   summary.Annotations,
		FramesSkipped: summary.FramesSkipped,
		Issues:        outcomeFromSummary(summary, nil).Issues,
		DurationMS:    summary.Duration().Milliseconds(),
	}
	if published != nil {
		out.PublishedTo = published.Location
	}
	return out
}
