package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelreel/internal/preflight"
	"labelreel/internal/services"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tools, paths and the Label Studio connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, !offline)

			w := cmd.OutOrStdout()
			colors := newPalette(w)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := colors.good("ok")
				switch {
				case r.Passed:
				case r.Warning:
					status = colors.warn("warn")
				default:
					status = colors.bad("fail")
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(w, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "doctor", "checks",
					fmt.Sprintf("%d of %d checks failed", len(failed), len(results)), nil)
			}
			fmt.Fprintln(w, "All required checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Label Studio connectivity check")
	return cmd
}
