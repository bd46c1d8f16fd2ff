package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"labelreel/internal/config"
	"labelreel/internal/history"
	"labelreel/internal/logging"
	"labelreel/internal/preview"
	"labelreel/internal/publish"
)

// newUploader is replaced in tests.
var newUploader = func(ctx context.Context, cfg *config.Config) (publish.Uploader, error) {
	return publish.NewS3Uploader(ctx, cfg.Publish.Bucket, cfg.Publish.Region)
}

type publishOutcome struct {
	RunID string `json:"run_id"`
	publish.Result
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var runID, bucket, prefix string
	var noArchive bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "publish [dataset-dir]",
		Short: "Upload a converted dataset to object storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			dir := cfg.Paths.OutputDir
			if len(args) == 1 {
				if err := applyPathFlags(cfg, "", "", args[0]); err != nil {
					return err
				}
				dir = cfg.Paths.OutputDir
			}
			if bucket != "" {
				cfg.Publish.Bucket = bucket
			}
			if cmd.Flags().Changed("prefix") {
				cfg.Publish.Prefix = prefix
			}
			archive := cfg.Publish.Archive
			if noArchive {
				archive = false
			}

			format := cfg.Conversion.Format
			if runID == "" {
				runID, format = latestRun(cmd.Context(), cfg, dir, logger)
			}
			outcome, err := runPublish(cmd.Context(), cfg, logger, dir, runID, format, archive)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, outcome)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, [][]string{
				{"Run", outcome.RunID},
				{"Location", outcome.Location},
				{"Files", strconv.Itoa(outcome.Files)},
				{"Objects", strconv.Itoa(outcome.Objects)},
				{"Uploaded", humanize.Bytes(uint64(outcome.Bytes))},
			}, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id to publish under (default: latest successful run for the directory)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination S3 bucket (overrides config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix inside the bucket (overrides config)")
	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "Upload every file instead of one archive")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the upload result as JSON")
	return cmd
}

// latestRun returns the newest successful run that wrote dir, or a fresh id
// when history has none.
func latestRun(ctx context.Context, cfg *config.Config, dir string, logger *slog.Logger) (string, string) {
	format := cfg.Conversion.Format
	store, err := history.Open(cfg)
	if err != nil {
		logger.Debug("run history unavailable", logging.Error(err))
		return uuid.NewString(), format
	}
	defer store.Close()
	run, err := store.LatestForOutput(ctx, dir)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			logger.Debug("run history lookup failed", logging.Error(err))
		}
		return uuid.NewString(), format
	}
	return run.ID, run.Format
}

func runPublish(ctx context.Context, cfg *config.Config, logger *slog.Logger, dir, runID, format string, archive bool) (publishOutcome, error) {
	uploader, err := newUploader(ctx, cfg)
	if err != nil {
		return publishOutcome{}, err
	}
	result, err := publish.NewPublisher(uploader, logger).Publish(ctx, dir, publish.Options{
		RunID:   runID,
		Format:  format,
		Prefix:  cfg.Publish.Prefix,
		Archive: archive,
		Exclude: []string{preview.DirName},
	})
	if err != nil {
		return publishOutcome{}, err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return publishOutcome{RunID: runID, Result: result}, nil
	}
	defer store.Close()
	if err := store.MarkPublished(ctx, runID, result.Location); err != nil && !errors.Is(err, history.ErrNotFound) {
		logging.WarnWithContext(logger, "failed to record publish location", "history_write_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "history will not show the upload location"),
		)
	}
	return publishOutcome{RunID: runID, Result: result}, nil
}
