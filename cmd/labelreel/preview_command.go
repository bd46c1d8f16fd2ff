package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelreel/internal/preview"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var lineWidth float64

	cmd := &cobra.Command{
		Use:   "preview [dataset-dir]",
		Short: "Draw YOLO boxes onto dataset frames for visual checking",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := applyPathFlags(cfg, "", "", args[0]); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("limit") {
				cfg.Preview.Limit = limit
			}
			if cmd.Flags().Changed("line-width") {
				cfg.Preview.LineWidth = lineWidth
			}
			result, err := preview.Render(cmd.Context(), cfg.Paths.OutputDir, preview.Options{
				Limit:     cfg.Preview.Limit,
				LineWidth: cfg.Preview.LineWidth,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Rendered %d frames (%d boxes) into %s\n", result.Rendered, result.Boxes, result.Dir)
			if result.Missing > 0 {
				fmt.Fprintln(w, newPalette(w).warn(fmt.Sprintf("%d label files had no image", result.Missing)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum frames to render (0 renders all)")
	cmd.Flags().Float64Var(&lineWidth, "line-width", 0, "Box outline width in pixels")
	return cmd
}
