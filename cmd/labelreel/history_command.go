package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"labelreel/internal/history"
	"labelreel/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous conversion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded")
				return nil
			}
			colors := newPalette(w)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					humanize.Time(run.StartedAt),
					run.Format,
					statusLabel(colors, run.Status),
					strconv.Itoa(run.Images),
					strconv.Itoa(run.Annotations),
					strconv.Itoa(run.IssueTotal()),
					run.OutputDir,
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Run", "Started", "Format", "Status", "Images", "Annotations", "Issues", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 lists all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, history.ErrNotFound) {
					return services.Wrap(services.ErrNotFound, "history", "show", "no run "+args[0], nil)
				}
				return err
			}
			w := cmd.OutOrStdout()
			colors := newPalette(w)
			rows := [][]string{
				{"Run", run.ID},
				{"Command", run.Command},
				{"Status", statusLabel(colors, run.Status)},
				{"Format", run.Format},
				{"Annotations file", run.AnnotationsFile},
				{"Output", run.OutputDir},
				{"Started", run.StartedAt.Local().Format(time.DateTime)},
			}
			if !run.FinishedAt.IsZero() {
				rows = append(rows,
					[]string{"Finished", run.FinishedAt.Local().Format(time.DateTime)},
					[]string{"Duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()},
				)
			}
			rows = append(rows,
				[]string{"Tasks", strconv.Itoa(run.Tasks)},
				[]string{"Videos", strconv.Itoa(run.Videos)},
				[]string{"Images", strconv.Itoa(run.Images)},
				[]string{"Annotations", strconv.Itoa(run.Annotations)},
				[]string{"Frames skipped", strconv.Itoa(run.FramesSkipped)},
			)
			for _, kind := range slices.Sorted(maps.Keys(run.Issues)) {
				rows = append(rows, []string{"Issue " + kind, strconv.Itoa(run.Issues[kind])})
			}
			if run.ErrorMessage != "" {
				rows = append(rows, []string{"Error", colors.bad(run.ErrorCategory + ": " + run.ErrorMessage)})
			}
			if run.PublishedTo != "" {
				rows = append(rows, []string{"Published", run.PublishedTo})
			}
			fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func statusLabel(colors palette, status history.Status) string {
	switch status {
	case history.StatusSucceeded:
		return colors.good(string(status))
	case history.StatusFailed:
		return colors.bad(string(status))
	default:
		return colors.warn(string(status))
	}
}
