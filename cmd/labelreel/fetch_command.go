package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"labelreel/internal/services/labelstudio"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var annotationsFile, videoDir string
	var projectID int
	var force, skipVideos bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the annotation export and task videos from Label Studio",
		Long: `Fetch creates an export snapshot with interpolated keyframes, saves it as
the annotations file and downloads every task video into the video directory.
An existing annotations file is reused unless --force is given; videos that
already exist locally are never downloaded again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			if err := applyPathFlags(cfg, annotationsFile, videoDir, ""); err != nil {
				return err
			}
			if projectID > 0 {
				cfg.LabelStudio.ProjectID = projectID
			}
			client, err := labelstudio.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			result, err := client.Fetch(cmd.Context(), labelstudio.FetchOptions{
				AnnotationsFile:      cfg.Paths.AnnotationsFile,
				VideoDir:             cfg.Paths.VideoDir,
				InterpolateKeyframes: cfg.LabelStudio.InterpolateKeyframes,
				Force:                force,
				SkipVideos:           skipVideos,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			colors := newPalette(w)
			annotations := "exported"
			if result.AnnotationsReused {
				annotations = "reused existing file"
			} else if result.ExportID > 0 {
				annotations = fmt.Sprintf("exported (snapshot %d)", result.ExportID)
			}
			videos := result.Videos
			rows := [][]string{
				{"Annotations", result.AnnotationsFile + " (" + annotations + ")"},
				{"Downloaded", strconv.Itoa(len(videos.Downloaded)) + " (" + humanize.Bytes(uint64(videos.Bytes)) + ")"},
				{"Already present", strconv.Itoa(len(videos.Existing))},
				{"Tasks without video", strconv.Itoa(len(videos.NoVideo))},
			}
			failed := strconv.Itoa(len(videos.Failed))
			if len(videos.Failed) > 0 {
				failed = colors.bad(failed)
			}
			rows = append(rows, []string{"Failed", failed})
			fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			for _, failure := range videos.Failed {
				fmt.Fprintf(w, "task %d: %s: %v\n", failure.TaskID, failure.URL, failure.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&annotationsFile, "annotations", "", "Where to save the annotation export")
	cmd.Flags().StringVar(&videoDir, "videos", "", "Where to save task videos")
	cmd.Flags().IntVar(&projectID, "project", 0, "Label Studio project id (overrides config)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-export annotations even when the file exists")
	cmd.Flags().BoolVar(&skipVideos, "skip-videos", false, "Only download the annotation export")
	return cmd
}
