package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"labelreel/internal/config"
	"labelreel/internal/pipeline"
	"labelreel/internal/services"
)

type planVideo struct {
	Path       string   `json:"path"`
	Refs       []string `json:"refs"`
	Tasks      int      `json:"tasks"`
	Frames     int      `json:"frames"`
	Boxes      int      `json:"boxes"`
	OutOfRange int      `json:"out_of_range"`
}

type planOutput struct {
	Tasks      int         `json:"tasks"`
	Keyframes  int         `json:"keyframes"`
	Videos     []planVideo `json:"videos"`
	Unresolved []string    `json:"unresolved"`
	Frames     int         `json:"frames"`
	Boxes      int         `json:"boxes"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var classes, annotationsFile, videoDir string
	var frameBase int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the frames each video would contribute without decoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			if err := applyPathFlags(cfg, annotationsFile, videoDir, ""); err != nil {
				return err
			}
			if cmd.Flags().Changed("frame-base") {
				cfg.Conversion.FrameBase = frameBase
			}
			work, err := buildWorkPlan(cfg, classes, logger)
			if err != nil {
				return err
			}
			out := summarizePlan(work)
			if jsonOutput {
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(out.Videos)+len(out.Unresolved))
			for _, video := range out.Videos {
				rows = append(rows, []string{
					video.Path,
					strconv.Itoa(video.Tasks),
					strconv.Itoa(video.Frames),
					strconv.Itoa(video.Boxes),
					strconv.Itoa(video.OutOfRange),
				})
			}
			colors := newPalette(cmd.OutOrStdout())
			for _, ref := range out.Unresolved {
				rows = append(rows, []string{colors.bad("unresolved: " + ref), "", "", "", ""})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable(
				[]string{"Video", "Tasks", "Frames", "Boxes", "Out of range"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(w, "%d tasks, %d keyframes, %d frames, %d boxes\n", out.Tasks, out.Keyframes, out.Frames, out.Boxes)
			return nil
		},
	}
	cmd.Flags().StringVar(&classes, "classes", "", "Class mapping JSON (or @file)")
	cmd.Flags().StringVar(&annotationsFile, "annotations", "", "Annotation export file (JSON_MIN)")
	cmd.Flags().StringVar(&videoDir, "videos", "", "Directory holding the source videos")
	cmd.Flags().IntVar(&frameBase, "frame-base", 0, "Number of the first frame in the export")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")
	return cmd
}

// buildWorkPlan loads inputs and projects them without decoding.
func buildWorkPlan(cfg *config.Config, classes string, logger *slog.Logger) (*pipeline.WorkPlan, error) {
	mapping, err := classMapping(cfg, classes)
	if err != nil {
		return nil, err
	}
	tasks, videos, err := loadInputs(cfg)
	if err != nil {
		return nil, err
	}
	work, err := pipeline.BuildPlan(tasks, videos, mapping, pipeline.PlanOptions{
		FrameBase: cfg.Conversion.FrameBase,
		Resolver:  newResolver(cfg, logger),
		Logger:    logger,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "plan", "project annotations", "", err)
	}
	return work, nil
}

func summarizePlan(work *pipeline.WorkPlan) planOutput {
	out := planOutput{
		Tasks:      work.Stats.Tasks,
		Keyframes:  work.Stats.Keyframes,
		Videos:     make([]planVideo, 0, len(work.Jobs)),
		Unresolved: make([]string, 0, len(work.Unresolved)),
		Frames:     work.Frames(),
		Boxes:      work.Boxes(),
	}
	for _, job := range work.Jobs {
		refs := make([]string, 0, len(job.Refs))
		for _, ref := range job.Refs {
			refs = append(refs, ref.Ref)
		}
		out.Videos = append(out.Videos, planVideo{
			Path:       job.Path,
			Refs:       refs,
			Tasks:      len(job.Plan.TaskIDs),
			Frames:     len(job.Plan.Indices),
			Boxes:      job.Plan.BoxCount(),
			OutOfRange: len(job.Plan.OutOfRange),
		})
	}
	for _, u := range work.Unresolved {
		out.Unresolved = append(out.Unresolved, u.Ref)
	}
	return out
}
