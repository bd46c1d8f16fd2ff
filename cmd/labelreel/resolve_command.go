package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"labelreel/internal/videoresolve"
)

type resolveRow struct {
	Ref        string `json:"ref"`
	Path       string `json:"path,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Tasks      int    `json:"tasks"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var annotationsFile, videoDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show which local video each annotation reference resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			if err := applyPathFlags(cfg, annotationsFile, videoDir, ""); err != nil {
				return err
			}
			tasks, videos, err := loadInputs(cfg)
			if err != nil {
				return err
			}
			resolver := newResolver(cfg, logger)

			var order []string
			counts := make(map[string]int)
			for _, task := range tasks {
				if _, seen := counts[task.VideoRef]; !seen {
					order = append(order, task.VideoRef)
				}
				counts[task.VideoRef]++
			}

			rows := make([]resolveRow, 0, len(order))
			unresolved := 0
			for _, ref := range order {
				row := resolveRow{Ref: ref, Tasks: counts[ref]}
				resolved, err := resolver.Resolve(ref, videos)
				switch {
				case err == nil:
					row.Path = resolved.Path
					row.Strategy = string(resolved.Strategy)
					row.Confidence = string(resolved.Confidence)
				case errors.Is(err, videoresolve.ErrNoMatchingVideo):
					unresolved++
				default:
					return err
				}
				rows = append(rows, row)
			}

			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			w := cmd.OutOrStdout()
			colors := newPalette(w)
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				file := colors.bad("(no match)")
				if row.Path != "" {
					file = filepath.Base(row.Path)
				}
				confidence := row.Confidence
				switch videoresolve.Confidence(confidence) {
				case videoresolve.ConfidenceHigh:
					confidence = colors.good(confidence)
				case videoresolve.ConfidenceMedium, videoresolve.ConfidenceLow:
					confidence = colors.warn(confidence)
				}
				table = append(table, []string{row.Ref, file, row.Strategy, confidence, strconv.Itoa(row.Tasks)})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Reference", "File", "Strategy", "Confidence", "Tasks"},
				table,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(w, "%d references, %d unresolved, %d local videos\n", len(rows), unresolved, len(videos))
			return nil
		},
	}
	cmd.Flags().StringVar(&annotationsFile, "annotations", "", "Annotation export file (JSON_MIN)")
	cmd.Flags().StringVar(&videoDir, "videos", "", "Directory holding the source videos")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print resolutions as JSON")
	return cmd
}
