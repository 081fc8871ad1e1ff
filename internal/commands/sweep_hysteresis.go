// internal/commands/sweep_hysteresis.go
package modeprobe

import (
	"fmt"

	"github.com/spf13/cobra"

	"modeprobe/internal/experiments"
	"modeprobe/internal/report"
	"modeprobe/internal/tui"
)

var sweepHysteresisCmd = &cobra.Command{
	Use:   "hysteresis",
	Short: "Sweep k up and down looking for path-dependent transitions",
	Long: `Run an ascending and a descending pass over the configured k values with a
fixed prompt set, then compare where mean phi crosses 0.5 in each
direction and how bimodal the raw outcomes are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, cleanup, err := newRunner(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		progress := tui.NewSweep("hysteresis")
		runner.Progress = progress.Progress
		result, err := runner.RunHysteresis(cmd.Context(), maxPrompts(cmd))
		progress.Finish()
		if err != nil {
			return err
		}

		rendered := report.Hysteresis(result)
		fmt.Println(rendered)

		written, err := runner.SaveRun(experiments.RunFiles{
			Name:      "hysteresis",
			Timestamp: result.Timestamp,
			Analysis:  result,
			Trials:    result.Trials,
			Report:    rendered,
		})
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Printf("wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	sweepCmd.AddCommand(sweepHysteresisCmd)
}
